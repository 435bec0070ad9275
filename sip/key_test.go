package sip_test

import (
	"testing"

	"github.com/sipclient/txlayer/message"
	"github.com/sipclient/txlayer/sip"
)

func TestClientTransactionKey_FillFromMessageAndMatch(t *testing.T) {
	t.Parallel()

	req := newTestRequest(t, message.MethodInvite, "z9hG4bK-match")
	key := sip.GetClientTransactionKey(req)
	if !key.IsValid() {
		t.Fatalf("key = %+v, want valid", key)
	}
	if key.Branch != "z9hG4bK-match" || !key.Method.Equal(message.MethodInvite) {
		t.Fatalf("key = %+v, want branch=z9hG4bK-match method=INVITE", key)
	}

	var otherKey sip.ClientTransactionKey
	otherKey.FillFromMessage(req)
	if !key.Equal(otherKey) {
		t.Fatalf("key %+v does not equal itself re-derived as %+v", key, otherKey)
	}
}

func TestClientTransactionKey_ZeroIsInvalid(t *testing.T) {
	t.Parallel()

	var key sip.ClientTransactionKey
	if !key.IsZero() {
		t.Fatal("zero key reports IsZero() = false")
	}
	if key.IsValid() {
		t.Fatal("zero key reports IsValid() = true")
	}
}

func TestClientTransactionKey_BinaryRoundTrip(t *testing.T) {
	t.Parallel()

	key := sip.ClientTransactionKey{Branch: "z9hG4bK-roundtrip", Method: message.MethodInvite}
	data, err := key.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}

	var got sip.ClientTransactionKey
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if !got.Equal(key) {
		t.Fatalf("round-tripped key = %+v, want %+v", got, key)
	}
}

func TestClientTransactionKey_String(t *testing.T) {
	t.Parallel()

	key := sip.ClientTransactionKey{Branch: "z9hG4bK-str", Method: message.MethodInvite}
	if got, want := key.String(), "INVITE;branch=z9hG4bK-str"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
