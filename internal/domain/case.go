// Package domain defines the core interfaces and types for Harrier.
package domain

// Receipt is a single payment receipt attached to a registration document.
// AccCanc is the inclusion flag from the registration system: "A" means the
// receipt is active and counts toward the paid total, anything else means
// cancelled/excluded.
type Receipt struct {
	Amount      float64 `json:"amount"`
	AccCanc     string  `json:"acc_canc"`
	ReceiptDate string  `json:"receipt_date,omitempty"`
	ChallanNo   string  `json:"challan_no,omitempty"`
	ChallanDate string  `json:"challan_date,omitempty"`
}

// Active reports whether the receipt counts toward the paid total.
func (r Receipt) Active() bool {
	return r.AccCanc == "A"
}

// Exemption is a claimed stamp-duty exemption on a registration document.
type Exemption struct {
	Code             string  `json:"code"`
	Amount           float64 `json:"amount"`
	Reason           string  `json:"reason,omitempty"`
	DocTypeEligible  bool    `json:"doc_type_eligible"`
	CapAmount        float64 `json:"cap_amount"`
	RepeatUsageCount int     `json:"repeat_usage_count"`
}

// Party is a person or entity named on the registration document.
type Party struct {
	Code  string `json:"CODE"`
	Name  string `json:"NAME"`
	PANNo string `json:"PAN_NO,omitempty"`
}

// ManualCaseInput is the fact sheet for one registration document, as entered
// by an analyst or ingested from the registration system. All fields are
// treated as immutable for the duration of one evaluation. Monetary values
// are whole rupees. Dates are "YYYY-MM-DD" strings; empty means unknown.
type ManualCaseInput struct {
	// Identity
	SRCode   string `json:"SR_CODE"`
	SRName   string `json:"SR_NAME,omitempty"`
	BookNo   string `json:"BOOK_NO"`
	DoctNo   string `json:"DOCT_NO"`
	RegYear  int    `json:"REG_YEAR"`
	DocType  string `json:"doc_type,omitempty"`
	RDate    string `json:"R_DATE,omitempty"`
	Zone     string `json:"zone,omitempty"`
	District string `json:"district,omitempty"`

	// Payable components
	SDPayable  float64 `json:"SD_PAYABLE"`
	TDPayable  float64 `json:"TD_PAYABLE"`
	RFPayable  float64 `json:"RF_PAYABLE"`
	DSDPayable float64 `json:"DSD_PAYABLE"`
	OtherFee   float64 `json:"OTHER_FEE"`

	Receipts []Receipt `json:"receipts"`

	// Market value facts. Zero means "not provided".
	DeclaredValue     float64 `json:"declared_value"`
	ExpectedValue     float64 `json:"expected_value"`
	FinalTaxableValue float64 `json:"FINAL_TAXABLE_VALUE"`
	UnitRateCurrent   float64 `json:"unit_rate_current"`
	UnitRatePrevious  float64 `json:"unit_rate_previous"`
	NearbyMedianRate  float64 `json:"nearby_median_rate"`

	Exemptions []Exemption `json:"exemptions"`

	// Flags
	ProhibitedLandMatch bool `json:"prohibited_land_match"`
	IsUrban             bool `json:"is_urban"`
	ScheduleDataExists  bool `json:"schedule_data_exists"`
	HolidayRegistration bool `json:"holiday_registration"`

	Parties []Party `json:"parties"`
}

// PayableTotal is the sum of the five payable components.
func (c ManualCaseInput) PayableTotal() float64 {
	return c.SDPayable + c.TDPayable + c.RFPayable + c.DSDPayable + c.OtherFee
}

// PaidTotal is the sum of amounts over active receipts.
func (c ManualCaseInput) PaidTotal() float64 {
	var total float64
	for _, r := range c.Receipts {
		if r.Active() {
			total += r.Amount
		}
	}
	return total
}

// Gap is max(0, payable - paid). There is no stored gap field anywhere;
// every consumer derives it through this method so the arithmetic cannot
// drift between components.
func (c ManualCaseInput) Gap() float64 {
	gap := c.PayableTotal() - c.PaidTotal()
	if gap < 0 {
		return 0
	}
	return gap
}

// Office identifies the sub-registrar office a case belongs to.
type Office struct {
	Zone     string `json:"zone"`
	District string `json:"district"`
	SRCode   string `json:"SR_CODE"`
	SRName   string `json:"SR_NAME"`
}

// CaseDates holds the document dates tracked on a case.
type CaseDates struct {
	RDate string `json:"R_DATE"`
}

// SLAInfo tracks the review SLA for a case. A nil SLAInfo on a case means
// SLA data was never recorded for it.
type SLAInfo struct {
	SLABreached bool   `json:"sla_breached"`
	DueDate     string `json:"due_date,omitempty"`
}

// Case status values. Cases are never deleted, only status-transitioned.
const (
	CaseStatusNew       = "New"
	CaseStatusInReview  = "In Review"
	CaseStatusConfirmed = "Confirmed"
	CaseStatusResolved  = "Resolved"
	CaseStatusRejected  = "Rejected"
)

// LeakageCase is a persisted case: one evaluated registration document with
// its derived risk attributes. Created by manual entry or the batch
// detection worker, mutated via partial updates.
type LeakageCase struct {
	ID             string       `json:"id"`
	TenantID       string       `json:"tenantId,omitempty"`
	Office         Office       `json:"office"`
	DocType        string       `json:"doc_type,omitempty"`
	RiskLevel      string       `json:"risk_level"`
	RiskScore      int          `json:"risk_score"`
	LeakageSignals []SignalType `json:"leakage_signals"`
	CaseStatus     string       `json:"case_status"`
	GapINR         float64      `json:"gap_inr"`
	PayableINR     float64      `json:"payable_total_inr"`
	PaidINR        float64      `json:"paid_total_inr"`
	Confidence     int          `json:"confidence"`
	Dates          CaseDates    `json:"dates"`
	SLA            *SLAInfo     `json:"sla,omitempty"`
}
