package risk

import "math"

// Factor weights, summing to 1.0. Disputes carry the largest share even
// though the dispute feed is not wired yet; see CollectFactors.
const (
	weightDisputes     = 0.25
	weightRefunds      = 0.20
	weightIPVelocity   = 0.15
	weightAccountAge   = 0.10
	weightVerification = 0.15
	weightOrderVolume  = 0.05
	weightFailedLogins = 0.10
)

const fraudSuspectedThreshold = 80

// Calculate maps a factor bundle to a score, level, per-factor sub-scores
// and flag set. Pure function: same factors, same result.
func Calculate(factors Factors) ScoreResult {
	factorScores := FactorScores{
		Disputes:     calculateDisputeScore(factors.DisputeCount),
		Refunds:      calculateRefundScore(factors.RefundRate),
		IPVelocity:   calculateIPVelocityScore(factors.IPVelocity),
		AccountAge:   calculateAccountAgeScore(factors.AccountAgeDays),
		Verification: calculateVerificationScore(factors.Verification),
		OrderVolume:  calculateOrderVolumeScore(factors.OrderVolume),
		FailedLogins: calculateFailedLoginScore(factors.FailedLoginAttempts),
	}

	total := factorScores.Disputes*weightDisputes +
		factorScores.Refunds*weightRefunds +
		factorScores.IPVelocity*weightIPVelocity +
		factorScores.AccountAge*weightAccountAge +
		factorScores.Verification*weightVerification +
		factorScores.OrderVolume*weightOrderVolume +
		factorScores.FailedLogins*weightFailedLogins

	score := int(math.Round(total))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return ScoreResult{
		Score:   score,
		Level:   levelForScore(score),
		Factors: factorScores,
		Flags:   identifyFlags(factors, score),
	}
}

// calculateDisputeScore scores the chargeback/dispute count (0-100)
func calculateDisputeScore(disputeCount int) float64 {
	switch {
	case disputeCount == 0:
		return 0
	case disputeCount == 1:
		return 40
	case disputeCount == 2:
		return 70
	default:
		return 100 // 3+ disputes = max risk
	}
}

// calculateRefundScore scores the refund rate percentage (0-100)
func calculateRefundScore(refundRate float64) float64 {
	switch {
	case refundRate == 0:
		return 0
	case refundRate < 5:
		return 20
	case refundRate < 10:
		return 40
	case refundRate < 20:
		return 60
	case refundRate < 30:
		return 80
	default:
		return 100 // 30%+ refund rate = max risk
	}
}

// calculateIPVelocityScore scores distinct IPs over 30 days (0-100)
func calculateIPVelocityScore(uniqueIPCount int) float64 {
	switch {
	case uniqueIPCount <= 2:
		return 0
	case uniqueIPCount <= 5:
		return 20
	case uniqueIPCount <= 10:
		return 50
	case uniqueIPCount <= 20:
		return 75
	default:
		return 100 // 20+ IPs in 30 days = max risk
	}
}

// calculateAccountAgeScore scores account age in days; newer is riskier
func calculateAccountAgeScore(ageDays int) float64 {
	switch {
	case ageDays > 365:
		return 0
	case ageDays > 180:
		return 10
	case ageDays > 90:
		return 30
	case ageDays > 30:
		return 50
	case ageDays > 7:
		return 70
	default:
		return 90 // less than 1 week old
	}
}

// calculateVerificationScore scores how many of email/phone/KYC are verified
func calculateVerificationScore(status VerificationStatus) float64 {
	verified := 0
	for _, v := range []bool{status.EmailVerified, status.PhoneVerified, status.KYCVerified} {
		if v {
			verified++
		}
	}

	switch verified {
	case 3:
		return 0
	case 2:
		return 20
	case 1:
		return 50
	default:
		return 80
	}
}

// calculateOrderVolumeScore scores total order count; both extremes carry risk
func calculateOrderVolumeScore(orderCount int) float64 {
	switch {
	case orderCount == 0:
		return 30
	case orderCount <= 50:
		return 0
	case orderCount <= 100:
		return 10
	case orderCount <= 200:
		return 20
	default:
		return 40 // extremely high volume, possible abuse
	}
}

// calculateFailedLoginScore scores failed logins in the trailing 24 hours
func calculateFailedLoginScore(failedAttempts int) float64 {
	switch {
	case failedAttempts == 0:
		return 0
	case failedAttempts <= 2:
		return 20
	case failedAttempts <= 5:
		return 50
	case failedAttempts <= 10:
		return 80
	default:
		return 100
	}
}

func levelForScore(score int) Level {
	switch {
	case score <= 25:
		return LevelLow
	case score <= 50:
		return LevelMedium
	case score <= 75:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// identifyFlags derives the flag set from the raw factors and the final score
func identifyFlags(factors Factors, score int) []string {
	flags := make([]string, 0)

	if factors.DisputeCount > 0 {
		flags = append(flags, FlagChargeback)
	}
	if factors.RefundRate > 20 {
		flags = append(flags, FlagHighRefundRate)
	}
	if factors.IPVelocity > 10 {
		flags = append(flags, FlagIPVelocityHigh)
	}
	if factors.AccountAgeDays < 7 {
		flags = append(flags, FlagNewAccount)
	}
	if !factors.Verification.EmailVerified {
		flags = append(flags, FlagEmailUnverified)
	}
	if !factors.Verification.PhoneVerified {
		flags = append(flags, FlagPhoneUnverified)
	}
	if factors.FailedLoginAttempts > 5 {
		flags = append(flags, FlagFailedLogins)
	}
	if score > fraudSuspectedThreshold {
		flags = append(flags, FlagFraudSuspected)
	}

	return flags
}
