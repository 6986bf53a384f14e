package address

import (
	"context"
	"strings"

	"github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/maps"
)

// Places is the subset of the Google Places client used for recipient lookups.
type Places interface {
	Autocomplete(ctx context.Context, req maps.AutocompleteRequest) ([]maps.Prediction, error)
	Place(ctx context.Context, placeID string) (*maps.Place, error)
}

type Service interface {
	Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error)
	Resolve(ctx context.Context, placeID string) (Resolved, error)
}

type service struct {
	places Places
}

// NewService returns a service that reports a dependency error on every call
// when places is nil, so the routes stay mounted without a Maps key.
func NewService(places Places) Service {
	return &service{places: places}
}

func (s *service) Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error) {
	if s.places == nil {
		return nil, errors.New(errors.CodeDependency, "address lookup is not configured")
	}
	query := strings.TrimSpace(req.Query)
	if len([]rune(query)) < 3 {
		return nil, errors.New(errors.CodeValidation, "query must be at least 3 characters")
	}

	payload := maps.AutocompleteRequest{Input: query, LanguageCode: strings.TrimSpace(req.Language)}
	if country := strings.TrimSpace(req.Country); country != "" {
		payload.IncludedRegionCodes = []string{strings.ToUpper(country)}
	}

	predictions, err := s.places.Autocomplete(ctx, payload)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(predictions))
	for _, p := range predictions {
		out = append(out, Suggestion{PlaceID: p.PlaceID, Description: p.Text})
	}
	return out, nil
}

func (s *service) Resolve(ctx context.Context, placeID string) (Resolved, error) {
	if s.places == nil {
		return Resolved{}, errors.New(errors.CodeDependency, "address lookup is not configured")
	}
	if strings.TrimSpace(placeID) == "" {
		return Resolved{}, errors.New(errors.CodeValidation, "placeId is required")
	}
	place, err := s.places.Place(ctx, placeID)
	if err != nil {
		return Resolved{}, err
	}
	return fromPlace(place)
}

// fromPlace maps Google's component types onto the Vietnamese address
// hierarchy: province or municipality, district, ward, street.
func fromPlace(place *maps.Place) (Resolved, error) {
	if place == nil {
		return Resolved{}, errors.New(errors.CodeDependency, "place details missing")
	}

	street := place.Lookup("route")
	if number := place.Lookup("street_number"); number != "" && street != "" {
		street = number + " " + street
	}
	if street == "" {
		street = place.Lookup("premise", "point_of_interest")
	}
	if street == "" && place.FormattedAddress != "" {
		street = strings.TrimSpace(strings.Split(place.FormattedAddress, ",")[0])
	}

	res := Resolved{
		PlaceID:          place.PlaceID,
		FormattedAddress: place.FormattedAddress,
		Street:           street,
		Ward:             place.Lookup("sublocality_level_1", "administrative_area_level_3", "sublocality"),
		District:         place.Lookup("administrative_area_level_2", "locality"),
		City:             place.Lookup("administrative_area_level_1"),
		Country:          "VN",
		PostalCode:       place.Lookup("postal_code"),
		Lat:              place.Latitude,
		Lng:              place.Longitude,
	}
	for _, comp := range place.Components {
		for _, typ := range comp.Types {
			if typ == "country" && comp.ShortText != "" {
				res.Country = comp.ShortText
			}
		}
	}

	if res.Street == "" {
		return Resolved{}, errors.New(errors.CodeDependency, "place has no street")
	}
	if res.City == "" {
		return Resolved{}, errors.New(errors.CodeDependency, "place has no city or province")
	}
	return res, nil
}

type SuggestRequest struct {
	Query    string
	Country  string
	Language string
}

type Suggestion struct {
	PlaceID     string `json:"placeId"`
	Description string `json:"description"`
}

// Resolved carries the same address fields recipients are submitted with.
type Resolved struct {
	PlaceID          string  `json:"placeId"`
	FormattedAddress string  `json:"formattedAddress"`
	Street           string  `json:"street"`
	Ward             string  `json:"ward"`
	District         string  `json:"district"`
	City             string  `json:"city"`
	Country          string  `json:"country"`
	PostalCode       string  `json:"postalCode"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
}
