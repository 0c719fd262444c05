// Package publicip discovers the public address of this host with a STUN
// binding request. Comparing the address before and after a dial shows
// whether traffic leaves through the tunnel.
package publicip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gortc/stun"

	"github.com/BojanKomazec/IpSec/common"
)

// ErrNoMappedAddress is returned when the server's response carries no
// mapped address.
var ErrNoMappedAddress = errors.New("STUN response has no mapped address")

// initialRTO is the first retransmission timeout; it doubles after each
// unanswered request.
const initialRTO = 500 * time.Millisecond

// Result is the outcome of a binding request.
type Result struct {
	IP     net.IP
	Port   int
	Server string
	RTT    time.Duration
}

func (r Result) String() string {
	return net.JoinHostPort(r.IP.String(), fmt.Sprint(r.Port))
}

// Discover sends a binding request to server ("host:port") and returns
// the reflexive address. Without a context deadline the lookup is bounded
// by common.PublicIPTimeout.
func Discover(ctx context.Context, server string) (*Result, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, common.PublicIPTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", server)
	if err != nil {
		return nil, fmt.Errorf("failed to reach STUN server %s: %w", server, err)
	}
	defer conn.Close()

	// Unblock reads when the context is cancelled.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	request := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	deadline, _ := ctx.Deadline()
	rto := initialRTO
	buf := make([]byte, 1500)
	started := time.Now()

	for {
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("STUN request to %s: %w", server, context.DeadlineExceeded)
		}
		if _, err := conn.Write(request.Raw); err != nil {
			return nil, fmt.Errorf("failed to send binding request: %w", err)
		}

		wait := time.Now().Add(rto)
		if wait.After(deadline) {
			wait = deadline
		}
		conn.SetReadDeadline(wait)

		res, err := readResponse(conn, buf, request.TransactionID)
		if err == nil {
			res.Server = server
			res.RTT = time.Since(started)
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("STUN request to %s: %w", server, ctx.Err())
		}
		var ne net.Error
		if !errors.As(err, &ne) || !ne.Timeout() {
			return nil, err
		}
		rto *= 2
	}
}

// readResponse reads until a response to transaction id arrives.
func readResponse(conn net.Conn, buf []byte, id [stun.TransactionIDSize]byte) (*Result, error) {
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return nil, err
		}

		var m stun.Message
		if err := stun.Decode(buf[:n], &m); err != nil {
			common.LogDebug("Ignoring malformed STUN message: %v", err)
			continue
		}
		if m.TransactionID != id {
			continue
		}
		if m.Type.Class == stun.ClassErrorResponse {
			var code stun.ErrorCodeAttribute
			if err := code.GetFrom(&m); err == nil {
				return nil, fmt.Errorf("STUN server error: %s", code)
			}
			return nil, errors.New("STUN server returned an error response")
		}

		var xor stun.XORMappedAddress
		if err := xor.GetFrom(&m); err == nil {
			return &Result{IP: xor.IP, Port: xor.Port}, nil
		}
		var mapped stun.MappedAddress
		if err := mapped.GetFrom(&m); err == nil {
			return &Result{IP: mapped.IP, Port: mapped.Port}, nil
		}
		return nil, ErrNoMappedAddress
	}
}

// Changed reports whether the public address moved between before and after.
func Changed(before, after *Result) bool {
	if before == nil || after == nil {
		return false
	}
	return !before.IP.Equal(after.IP)
}
