package config

// PolicyConfig carries the business constants of bookings, passes and
// penalties. Amounts are in paise.
type PolicyConfig struct {
	DefaultPenaltyPerVehicle int64 // used when a zone has no penalty rate
	DefaultHourlyRate        int64 // used when a zone has no hourly rate
	CancellationWindowDays   int   // inclusive, counted in started days
	RefundDivisor            int64 // refund = price / RefundDivisor
	PassPrices               map[string]int64
}

// LoadPolicyConfig reads POLICY_* and PASS_PRICE_* variables.
func LoadPolicyConfig() PolicyConfig {
	p := PolicyConfig{
		DefaultPenaltyPerVehicle: envInt64("POLICY_DEFAULT_PENALTY_PER_VEHICLE", 50000),
		DefaultHourlyRate:        envInt64("POLICY_DEFAULT_HOURLY_RATE", 5000),
		CancellationWindowDays:   envInt("POLICY_CANCELLATION_WINDOW_DAYS", 5),
		RefundDivisor:            envInt64("POLICY_REFUND_DIVISOR", 6),
		PassPrices: map[string]int64{
			"weekly":  envInt64("PASS_PRICE_WEEKLY", 50000),
			"monthly": envInt64("PASS_PRICE_MONTHLY", 150000),
			"yearly":  envInt64("PASS_PRICE_YEARLY", 1500000),
		},
	}
	if p.RefundDivisor < 1 {
		p.RefundDivisor = 6
	}
	if p.CancellationWindowDays < 0 {
		p.CancellationWindowDays = 5
	}
	return p
}
