package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", fmt.Errorf("x: %w", ErrTransient), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"bad conn", driver.ErrBadConn, true},
		{"dial refused", dial, true},
		{"url wrapped dial", &url.Error{Op: "Get", URL: "http://x", Err: dial}, true},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"net timeout", &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}, true},
		{"status", &StatusError{StatusCode: 401, Body: "unauthorized"}, false},
		{"no data", fmt.Errorf("GET x: %w", ErrNoData), false},
		{"other", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("%s: IsTransient = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestStatusErrorIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 500, Body: "oops"})
	if !errors.Is(err, ErrStatus) {
		t.Fatal("StatusError should match ErrStatus")
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 500 {
		t.Fatalf("errors.As failed: %v", se)
	}
}
