package flow

// FormData is the state accumulated across the wizard. It lives for one
// session only; nothing is persisted.
type FormData struct {
	SelectedAddress string
	Latitude        *float64
	Longitude       *float64
	StreetViewURL   string
	Step1           AddressDetails
	Step2           HomeBasics
	Step3           Contact
	// UnitNumbers holds candidate unit numbers when the address resolved to
	// a multi-unit building, in provider order.
	UnitNumbers []string
}

// AddressDetails is the step1 state: the confirmed address plus the
// valuation fields patched in asynchronously after confirmation.
type AddressDetails struct {
	StreetAddress string
	UnitNumber    string
	City          string
	State         string
	Country       string
	Zipcode       string
	PriceEstimate string
	LowEstimate   string
	HighEstimate  string
	// ValuationAvailable is tri-state: nil until the valuation lookup
	// resolves, true only when a positive estimate was obtained, false on
	// confirmed absence. The results page gates on it strictly.
	ValuationAvailable *bool
}

// HomeBasics is the step2 state.
type HomeBasics struct {
	Beds       string
	Baths      string
	YearBuilt  string
	SquareFoot string
	UnitNumber string
}

// Contact is the step3 state.
type Contact struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
}

// LeadInfo correlates later description updates to the CRM lead record
// created on submission.
type LeadInfo struct {
	Email              string
	InitialDescription string
}

func newForm(country string) FormData {
	return FormData{
		Step1: AddressDetails{Country: country},
	}
}

// clone returns a copy that shares no mutable state with the original.
func (f FormData) clone() FormData {
	out := f
	if f.Latitude != nil {
		lat := *f.Latitude
		out.Latitude = &lat
	}
	if f.Longitude != nil {
		lng := *f.Longitude
		out.Longitude = &lng
	}
	if f.Step1.ValuationAvailable != nil {
		v := *f.Step1.ValuationAvailable
		out.Step1.ValuationAvailable = &v
	}
	out.UnitNumbers = append([]string(nil), f.UnitNumbers...)
	return out
}
