package ledger

import "time"

// SyncPolicy gates which sources may overwrite quantity, and when. Trusted
// sources (warehouse counts, the ERP) sync at any time; anything else is only
// accepted inside the off-peak window so a flaky feed cannot rewrite stock
// mid-rush.
type SyncPolicy struct {
	TrustedSources  []string
	WindowStartHour int // UTC, inclusive
	WindowEndHour   int // UTC, exclusive; may wrap past midnight
}

// DefaultSyncPolicy trusts the warehouse and ERP feeds and confines everything
// else to 22:00-06:00 UTC.
func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{
		TrustedSources:  []string{"warehouse", "erp"},
		WindowStartHour: 22,
		WindowEndHour:   6,
	}
}

// CanSynchronizeFrom reports whether source may sync at the given time
func (p SyncPolicy) CanSynchronizeFrom(source string, at time.Time) bool {
	for _, trusted := range p.TrustedSources {
		if source == trusted {
			return true
		}
	}

	hour := at.UTC().Hour()
	if p.WindowStartHour == p.WindowEndHour {
		return false
	}
	if p.WindowStartHour < p.WindowEndHour {
		return hour >= p.WindowStartHour && hour < p.WindowEndHour
	}
	// Window wraps past midnight.
	return hour >= p.WindowStartHour || hour < p.WindowEndHour
}
