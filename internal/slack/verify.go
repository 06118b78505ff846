package slack

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/slack-go/slack"
)

// ErrSignatureInvalid is returned when a request fails signature
// verification or its timestamp is outside the allowed skew.
var ErrSignatureInvalid = errors.New("slack: invalid request signature")

// VerifySignature checks the Slack signing signature of an inbound request
// against secret. Requests whose X-Slack-Request-Timestamp is further than
// maxSkew from now are rejected regardless of signature, defeating replay of
// captured deliveries.
func VerifySignature(header http.Header, body []byte, secret string, maxSkew time.Duration) error {
	tsHeader := header.Get("X-Slack-Request-Timestamp")
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp header", ErrSignatureInvalid)
	}
	if skew := time.Since(time.Unix(ts, 0)); skew > maxSkew || skew < -maxSkew {
		return fmt.Errorf("%w: timestamp outside allowed skew", ErrSignatureInvalid)
	}

	sv, err := slack.NewSecretsVerifier(header, secret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if err := sv.Ensure(); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return nil
}
