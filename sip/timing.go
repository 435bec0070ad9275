package sip

import (
	"encoding/json"
	"time"

	"braces.dev/errtrace"
)

// Default base values for SIP timers as described in RFC 3261 §17.1.1.2's
// Timer Defaults table.
const (
	// T1 is the round-trip-time estimate, used by non-INVITE retransmission.
	T1 = 500 * time.Millisecond
	// InviteT1 is the RTT estimate used by INVITE retransmission (Timer A)
	// and the INVITE transaction timeout (Timer B). It is configured
	// independently of T1 so deployments that need a longer INVITE horizon
	// (600ms is common against slower proxies) don't have to slow down
	// every non-INVITE request too.
	InviteT1 = 600 * time.Millisecond
	// T2 is the maximum retransmit interval for non-INVITE requests and
	// INVITE final responses.
	T2 = 4 * time.Second
	// T4 is the maximum duration a message is expected to remain in the
	// network.
	T4 = 5 * time.Second
	// TimeD is the wait duration for response retransmits via unreliable
	// transport (INVITE, Timer D).
	TimeD = 32 * time.Second
	// TimeK is the wait duration for response retransmits via unreliable
	// transport (non-INVITE, Timer K).
	TimeK = 5 * time.Second
)

// TimingConfig holds the SIP timer values used to configure a client
// transaction. Zero value uses the package defaults.
type TimingConfig struct {
	t1, inviteT1, t2, timeD, timeK time.Duration
}

var defTimingCfg TimingConfig

// NewTimings creates a new timing config with the given base values. Zero
// arguments fall back to the package defaults.
func NewTimings(t1, inviteT1, t2, timeD, timeK time.Duration) TimingConfig {
	return TimingConfig{t1, inviteT1, t2, timeD, timeK}
}

// T1 is the non-INVITE RTT estimate. Equal to [T1] if not specified.
func (c TimingConfig) T1() time.Duration {
	if c.t1 == 0 {
		return T1
	}
	return c.t1
}

// InviteT1 is the INVITE RTT estimate. Equal to [InviteT1] if not specified.
func (c TimingConfig) InviteT1() time.Duration {
	if c.inviteT1 == 0 {
		return InviteT1
	}
	return c.inviteT1
}

// T2 is the maximum retransmit interval. Equal to [T2] if not specified.
func (c TimingConfig) T2() time.Duration {
	if c.t2 == 0 {
		return T2
	}
	return c.t2
}

// TimeA returns the initial INVITE request retransmit interval (Timer A).
func (c TimingConfig) TimeA() time.Duration { return c.InviteT1() }

// TimeB returns the INVITE transaction timeout (Timer B).
func (c TimingConfig) TimeB() time.Duration { return 64 * c.InviteT1() }

// TimeD returns the wait duration for INVITE final-response retransmits on
// an unreliable transport (Timer D). Equal to [TimeD] if not specified.
func (c TimingConfig) TimeD() time.Duration {
	if c.timeD == 0 {
		return TimeD
	}
	return c.timeD
}

// TimeM returns the wait duration an accepted INVITE spends absorbing
// retransmitted 2xx responses before terminating (Timer M). Equal to
// [TimingConfig.TimeB], as in RFC 3261 §13.2.2.4.
func (c TimingConfig) TimeM() time.Duration { return c.TimeB() }

// TimeE returns the initial non-INVITE request retransmit interval
// (Timer E), doubling up to [TimingConfig.T2] while in the trying state.
func (c TimingConfig) TimeE() time.Duration { return c.T1() }

// TimeF returns the non-INVITE transaction timeout (Timer F).
func (c TimingConfig) TimeF() time.Duration { return 64 * c.T1() }

// TimeK returns the wait duration for non-INVITE final-response
// retransmits on an unreliable transport (Timer K). Equal to [TimeK] if not
// specified.
func (c TimingConfig) TimeK() time.Duration {
	if c.timeK == 0 {
		return TimeK
	}
	return c.timeK
}

// IsZero reports whether c carries no explicit overrides.
func (c TimingConfig) IsZero() bool {
	return c.t1 == 0 && c.inviteT1 == 0 && c.t2 == 0 && c.timeD == 0 && c.timeK == 0
}

type timingConfData struct {
	T1       time.Duration `json:"t1,omitempty"`
	InviteT1 time.Duration `json:"invite_t1,omitempty"`
	T2       time.Duration `json:"t2,omitempty"`
	TimeD    time.Duration `json:"time_d,omitempty"`
	TimeK    time.Duration `json:"time_k,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c TimingConfig) MarshalJSON() ([]byte, error) {
	return errtrace.Wrap2(json.Marshal(timingConfData{
		T1:       c.t1,
		InviteT1: c.inviteT1,
		T2:       c.t2,
		TimeD:    c.timeD,
		TimeK:    c.timeK,
	}))
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *TimingConfig) UnmarshalJSON(data []byte) error {
	var d timingConfData
	if err := json.Unmarshal(data, &d); err != nil {
		return errtrace.Wrap(err)
	}
	c.t1 = d.T1
	c.inviteT1 = d.InviteT1
	c.t2 = d.T2
	c.timeD = d.TimeD
	c.timeK = d.TimeK
	return nil
}
