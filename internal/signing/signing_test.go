package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func fixedGuard(now time.Time) *Guard {
	g := NewGuard(testSecret, 300*time.Second)
	g.nowFunc = func() time.Time { return now }
	return g
}

func TestCompute_MatchesManualHMAC(t *testing.T) {
	body := []byte(`{"a":1}`)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte("1700000000." + string(body)))
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, Compute([]byte(testSecret), "1700000000", body))
}

func TestVerify_Valid(t *testing.T) {
	now := time.Unix(1700000000, 0)
	g := fixedGuard(now)
	body := []byte(`{"ownerId":"u1"}`)
	ts := strconv.FormatInt(now.Unix(), 10)

	require.NoError(t, g.Verify(Compute([]byte(testSecret), ts, body), ts, body))
}

func TestVerify_MissingHeaders(t *testing.T) {
	g := fixedGuard(time.Unix(1700000000, 0))

	err := g.Verify("", "1700000000", []byte("{}"))
	assert.True(t, errors.Is(err, ErrMissingCredentials))

	err = g.Verify("abcd", "", []byte("{}"))
	assert.True(t, errors.Is(err, ErrMissingCredentials))
	assert.True(t, IsSignatureError(err))
}

func TestVerify_ReplayWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	g := fixedGuard(now)
	body := []byte(`{}`)

	tests := []struct {
		name   string
		offset int64
		ok     bool
	}{
		{"exact", 0, true},
		{"edge past", -300, true},
		{"edge future", 300, true},
		{"too old", -301, false},
		{"too far ahead", 301, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := strconv.FormatInt(now.Unix()+tt.offset, 10)
			err := g.Verify(Compute([]byte(testSecret), ts, body), ts, body)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrReplayRejected), "got %v", err)
			}
		})
	}
}

func TestVerify_MalformedTimestamp(t *testing.T) {
	g := fixedGuard(time.Unix(1700000000, 0))
	err := g.Verify("00", "yesterday", []byte("{}"))
	assert.True(t, errors.Is(err, ErrReplayRejected))
}

func TestVerify_Mismatch(t *testing.T) {
	now := time.Unix(1700000000, 0)
	g := fixedGuard(now)
	ts := strconv.FormatInt(now.Unix(), 10)

	err := g.Verify(Compute([]byte("other-secret"), ts, []byte("{}")), ts, []byte("{}"))
	assert.True(t, errors.Is(err, ErrSignatureMismatch))

	err = g.Verify("not-hex", ts, []byte("{}"))
	assert.True(t, errors.Is(err, ErrSignatureMismatch))
}

func TestVerify_AnySingleByteMutationRejected(t *testing.T) {
	now := time.Unix(1700000000, 0)
	g := fixedGuard(now)
	body := []byte(`{"ownerId":"u1","items":[{"fileId":"f1"}]}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := Compute([]byte(testSecret), ts, body)

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		assert.Error(t, g.Verify(sig, ts, mutated), "body byte %d", i)
	}

	for i := range ts {
		mutated := []byte(ts)
		mutated[i] ^= 0x01
		assert.Error(t, g.Verify(sig, string(mutated), body), "timestamp byte %d", i)
	}
}

func TestDecodeVerified_ParsesOnlyAfterVerification(t *testing.T) {
	now := time.Unix(1700000000, 0)
	g := fixedGuard(now)
	ts := strconv.FormatInt(now.Unix(), 10)

	type payload struct {
		OwnerID string `json:"ownerId"`
	}

	body := []byte(`{"ownerId":"u1"}`)
	got, err := DecodeVerified[payload](g, Compute([]byte(testSecret), ts, body), ts, body)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OwnerID)

	// Bad signature: the body is never decoded.
	got, err = DecodeVerified[payload](g, "00", ts, body)
	require.Error(t, err)
	assert.Empty(t, got.OwnerID)

	// Valid signature over invalid JSON.
	bad := []byte(`not json`)
	_, err = DecodeVerified[payload](g, Compute([]byte(testSecret), ts, bad), ts, bad)
	require.Error(t, err)
	assert.False(t, IsSignatureError(err))
}

func TestSigner_RoundTripsWithGuard(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := NewSigner(testSecret)
	s.nowFunc = func() time.Time { return now }

	env, err := s.SignJSON(map[string]string{"status": "accepted"})
	require.NoError(t, err)
	assert.Equal(t, "1700000000", env.Timestamp)
	assert.JSONEq(t, `{"status":"accepted"}`, string(env.Body))

	g := fixedGuard(now)
	assert.NoError(t, g.Verify(env.Signature, env.Timestamp, env.Body))
}

func TestNewGuard_DefaultWindow(t *testing.T) {
	g := NewGuard(testSecret, 0)
	assert.Equal(t, DefaultReplayWindow, g.window)
}
