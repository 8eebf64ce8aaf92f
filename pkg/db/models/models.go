package models

// All lists every persisted model, in dependency order. Used by AutoMigrate in
// local sqlite runs and tests; production schemas come from goose migrations.
func All() []any {
	return []any{
		&UserBalance{},
		&Skill{},
		&Booking{},
		&LedgerEntry{},
		&Review{},
		&OutboxEvent{},
	}
}
