// Package valuation produces home value estimates by orchestrating CoreLogic
// token exchange, property search, and AVM summary lookups.
package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/truepricereport/leadgen/pkg/corelogic"
)

// Estimate is the normalized valuation result returned to the browser.
// A "found but no valuation" outcome is a success-shaped Estimate with
// Available=false, not an error: it is an expected business outcome.
type Estimate struct {
	PriceEstimate   string                     `json:"priceEstimate,omitempty"`
	LowEstimate     string                     `json:"lowEstimate,omitempty"`
	HighEstimate    string                     `json:"highEstimate,omitempty"`
	ValuationDate   string                     `json:"valuationDate,omitempty"`
	PropertyAddress *corelogic.PropertyAddress `json:"propertyAddress,omitempty"`
	Clip            string                     `json:"clip,omitempty"`
	V1PropertyID    string                     `json:"v1PropertyId,omitempty"`
	UnitNumbers     []string                   `json:"unitNumbers,omitempty"`
	Message         string                     `json:"message"`
	Available       bool                       `json:"-"`
}

// LookupError is a failed lookup that should surface to the caller with a
// specific HTTP status and the upstream details, single-attempt, no retry.
type LookupError struct {
	StatusCode int
	Message    string
	Details    json.RawMessage
}

func (e *LookupError) Error() string {
	return e.Message
}

// Service resolves addresses to estimates through a CoreLogic client.
type Service struct {
	cl      corelogic.Client
	printer *message.Printer
}

// NewService creates a valuation Service.
func NewService(cl corelogic.Client) *Service {
	return &Service{
		cl:      cl,
		printer: message.NewPrinter(language.English),
	}
}

// Estimate looks up the property for streetAddress+zipcode and returns its
// valuation. Every upstream hop is a single attempt; upstream failures are
// translated to LookupError with the upstream status and body attached.
func (s *Service) Estimate(ctx context.Context, streetAddress, zipcode string) (*Estimate, error) {
	token, err := s.cl.Token(ctx)
	if err != nil {
		var se *corelogic.StatusError
		if errors.As(err, &se) {
			return nil, &LookupError{
				StatusCode: se.StatusCode,
				Message:    "Failed to obtain CoreLogic access token",
				Details:    se.Body,
			}
		}
		return nil, eris.Wrap(err, "valuation: token")
	}

	search, err := s.cl.SearchProperty(ctx, token, streetAddress, zipcode)
	if err != nil {
		var se *corelogic.StatusError
		if errors.As(err, &se) {
			return nil, &LookupError{
				StatusCode: se.StatusCode,
				Message:    "Could not find property or invalid response from CoreLogic.",
				Details:    se.Body,
			}
		}
		return nil, eris.Wrap(err, "valuation: property search")
	}

	if len(search.Data) == 0 {
		return nil, &LookupError{
			StatusCode: http.StatusNotFound,
			Message:    "Could not find property or invalid response from CoreLogic.",
		}
	}

	property := search.Data[0]
	propertyID := property.ID()
	if propertyID == "" {
		return nil, &LookupError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Could not retrieve property ID for valuation.",
		}
	}

	est := &Estimate{
		PropertyAddress: &property.PropertyAddress,
		Clip:            property.ClipID(),
		V1PropertyID:    property.V1ID(),
		UnitNumbers:     unitNumbers(search.Data),
	}

	valuation, err := s.cl.ValuationSummary(ctx, token, propertyID)
	if err != nil {
		var se *corelogic.StatusError
		if !errors.As(err, &se) {
			return nil, eris.Wrap(err, "valuation: avm summary")
		}
		// A failed summary fetch is treated the same as a missing estimate.
		zap.L().Warn("valuation summary unavailable",
			zap.String("property_id", propertyID),
			zap.Int("status", se.StatusCode),
		)
		valuation = nil
	}

	if valuation == nil || valuation.Summary.EstimatedValue == nil {
		est.Message = "Property found but valuation not available."
		return est, nil
	}

	est.PriceEstimate = s.formatUSD(*valuation.Summary.EstimatedValue)
	est.LowEstimate = s.formatUSD(valuation.Summary.LowValue)
	est.HighEstimate = s.formatUSD(valuation.Summary.HighValue)
	est.ValuationDate = valuation.Summary.ProcessedDate
	est.Message = "Property found and valuation retrieved."
	est.Available = true

	zap.L().Info("valuation retrieved",
		zap.String("property_id", propertyID),
		zap.String("estimate", est.PriceEstimate),
	)

	return est, nil
}

// formatUSD renders a dollar amount with thousands separators, e.g. "$450,000".
func (s *Service) formatUSD(v int64) string {
	return s.printer.Sprintf("$%d", v)
}

// unitNumbers collects distinct unit numbers across matches, in provider
// order. Multiple matches with units indicate a multi-unit building.
func unitNumbers(matches []corelogic.Property) []string {
	var units []string
	seen := make(map[string]bool)
	for _, m := range matches {
		u := m.PropertyAddress.UnitNumber
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		units = append(units, u)
	}
	return units
}
