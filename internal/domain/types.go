package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RecordHashLength is the byte length of an anchored content digest
const RecordHashLength = 32

// RecordHash is a 32-byte content digest encoded as a 0x-prefixed hex string
type RecordHash string

// ParseRecordHash normalizes and validates a record hash.
// The input may carry an optional 0x prefix; the returned value is always
// 0x-prefixed and lowercase. Anything other than exactly 64 hex characters
// fails validation.
func ParseRecordHash(s string) (RecordHash, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(trimmed) != RecordHashLength*2 {
		return "", NewValidationError(fmt.Errorf("record hash must be %d hex characters, got %d", RecordHashLength*2, len(trimmed)))
	}
	if _, err := hex.DecodeString(trimmed); err != nil {
		return "", NewValidationError(fmt.Errorf("record hash is not valid hex: %w", err))
	}
	return RecordHash("0x" + strings.ToLower(trimmed)), nil
}

// Bytes32 returns the digest as a fixed-width byte array for ABI encoding
func (h RecordHash) Bytes32() [RecordHashLength]byte {
	var out [RecordHashLength]byte
	decoded, err := hex.DecodeString(strings.TrimPrefix(string(h), "0x"))
	if err != nil || len(decoded) != RecordHashLength {
		return out
	}
	copy(out[:], decoded)
	return out
}

func (h RecordHash) String() string {
	return string(h)
}

// RoomForProduct derives the broadcast room key for a product identifier
func RoomForProduct(pid string) string {
	return "product_" + pid
}

// PID is a product identifier as clients send it. Dashboards send strings,
// some transporter firmware sends bare numbers; both decode to the literal
// token, so 42 and "42" address the same room.
type PID string

// UnmarshalJSON accepts a JSON string verbatim or a JSON number
func (p *PID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PID(s)
		return nil
	}
	if string(data) == "null" {
		*p = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = PID(n.String())
	return nil
}

func (p PID) String() string {
	return string(p)
}

// LocationUpdate is a transient position message pushed by a transporter
// device. It is never persisted; it exists only for the duration of a single
// fan-out dispatch.
type LocationUpdate struct {
	PID       PID        `json:"pid"`
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Timestamp *time.Time `json:"ts,omitempty"`
}

// Valid reports whether the update carries a product identifier.
// Updates without one are dropped, never forwarded.
func (u *LocationUpdate) Valid() bool {
	return u != nil && u.PID != ""
}

// Room returns the broadcast room this update fans out to
func (u *LocationUpdate) Room() string {
	return RoomForProduct(string(u.PID))
}

// AnchorRequest is the input to the anchoring worker
type AnchorRequest struct {
	ProductID  string     `json:"product_id"`
	RecordHash RecordHash `json:"record_hash"`
}

// Validate checks the request preconditions before any network I/O.
// On success the record hash is left in normalized 0x-prefixed form.
func (r *AnchorRequest) Validate() error {
	if r.ProductID == "" {
		return NewValidationError(fmt.Errorf("product id is empty"))
	}
	normalized, err := ParseRecordHash(string(r.RecordHash))
	if err != nil {
		return err
	}
	r.RecordHash = normalized
	return nil
}

// AnchorReceipt is the proof of inclusion returned after a successful anchor.
// Immutable once returned; callers persist it alongside the original record.
type AnchorReceipt struct {
	ProductID   string     `json:"product_id"`
	RecordHash  RecordHash `json:"record_hash"`
	TxHash      string     `json:"tx_hash"`
	BlockNumber uint64     `json:"block_number"`
	AnchoredAt  time.Time  `json:"anchored_at"`
}

// AnchorState tracks the lifecycle of a single anchor call
type AnchorState string

const (
	AnchorStateIdle                 AnchorState = "idle"
	AnchorStateValidating           AnchorState = "validating"
	AnchorStateSubmitting           AnchorState = "submitting"
	AnchorStateAwaitingConfirmation AnchorState = "awaiting_confirmation"
	AnchorStateConfirmed            AnchorState = "confirmed"
	AnchorStateFailed               AnchorState = "failed"
)
