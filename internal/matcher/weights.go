package matcher

// Signal weights. Bond/loan pairs differ only where noted.
const (
	identifierWeight = 0.95

	descriptionTitleWeight = 0.90
	descriptionBodyWeight  = 0.75

	proximityExactBond = 0.85
	proximityExactLoan = 0.80
	proximity3Days     = 0.75
	proximity7DaysBond = 0.70
	proximity7DaysLoan = 0.65
	proximity30Bond    = 0.60
	proximity30Loan    = 0.55

	issuerExactDate    = 0.80
	issuerMaturityBond = 0.70
	issuerMaturityLoan = 0.65
	issuerNearDate     = 0.70

	couponTitleWeight   = 0.35
	couponBodyWeight    = 0.20
	maturityTitleWeight = 0.35
	maturityBodyWeight  = 0.30

	seniorityWeight   = 0.15
	nameOverlapWeight = 0.15

	facilityTitleWeight = 0.30
	facilityBodyWeight  = 0.15

	commitmentWeight    = 0.25
	filingWindowBond    = 0.10
	filingWindowLoan    = 0.15
	amendedRestatedLoan = 0.10

	trancheExactWeight = 0.80
	trancheNearWeight  = 0.78

	amountAnchorWeight = 0.45
	amountBoost        = 0.10
	amountBoostCap     = 0.90

	sameCompanyWeight = 0.20

	footnoteWeight = 0.65
)

// Tolerances.
const (
	amountTolerance     = 0.05
	commitmentTolerance = 0.10
	trancheCouponTol    = 0.02
	minNameOverlap      = 2
	nearIssueDays       = 7
)

// Additive groups.
const (
	groupCoupon       = "coupon"
	groupMaturity     = "maturity"
	groupSeniority    = "seniority"
	groupName         = "name"
	groupFacility     = "facility"
	groupCommitment   = "commitment"
	groupFilingWindow = "filing_window"
	groupAmended      = "amended"
)
