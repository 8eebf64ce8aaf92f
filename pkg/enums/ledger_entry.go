package enums

import "fmt"

// LedgerEntryKind records which side of a transfer an entry describes.
type LedgerEntryKind string

const (
	LedgerEntryKindSpent  LedgerEntryKind = "spent"
	LedgerEntryKindEarned LedgerEntryKind = "earned"
)

func (k LedgerEntryKind) IsValid() bool {
	return k == LedgerEntryKindSpent || k == LedgerEntryKindEarned
}

// ParseLedgerEntryKind converts raw input into LedgerEntryKind.
func ParseLedgerEntryKind(value string) (LedgerEntryKind, error) {
	k := LedgerEntryKind(value)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid ledger entry kind %q", value)
	}
	return k, nil
}

// LedgerEntryStatus maps to ledger_entries.status.
type LedgerEntryStatus string

const (
	LedgerEntryStatusCompleted LedgerEntryStatus = "completed"
	LedgerEntryStatusCancelled LedgerEntryStatus = "cancelled"
)

func (s LedgerEntryStatus) IsValid() bool {
	return s == LedgerEntryStatusCompleted || s == LedgerEntryStatusCancelled
}
