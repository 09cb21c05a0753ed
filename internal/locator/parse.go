package locator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/pagestate"
)

// flexString tolerates IDs and distances serialized as either JSON
// strings or numbers; store finder payloads are not consistent.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	*f = flexString(s)
	return nil
}

func (f flexString) Float() float64 {
	v, err := strconv.ParseFloat(string(f), 64)
	if err != nil {
		return 0
	}
	return v
}

type walmartStoreFinder struct {
	StoreFinder struct {
		StoreFinderCarousel struct {
			Stores []walmartStore `json:"stores"`
		} `json:"storeFinderCarousel"`
		Stores []walmartStore `json:"stores"`
	} `json:"storeFinder"`
}

type walmartStore struct {
	ID          flexString `json:"id"`
	DisplayName string     `json:"displayName"`
	Address     struct {
		Address    string `json:"address"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postalCode"`
	} `json:"address"`
	Phone    string     `json:"phoneNumber"`
	Distance flexString `json:"distance"`
}

// parseWalmartStores decodes the __WML_REDUX_INITIAL_STATE__ blob.
// Depending on page variant the store list lives either directly
// under storeFinder or under its carousel.
func parseWalmartStores(html string) ([]Store, error) {
	raw, err := pagestate.ExtractAssigned(html, "__WML_REDUX_INITIAL_STATE__")
	if err != nil {
		return nil, err
	}

	var state walmartStoreFinder
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, &errs.ParseError{What: "walmart store finder state", Err: err}
	}

	source := state.StoreFinder.Stores
	if len(source) == 0 {
		source = state.StoreFinder.StoreFinderCarousel.Stores
	}
	if len(source) == 0 {
		return nil, &errs.ParseError{What: "walmart store finder state", Err: fmt.Errorf("no stores in payload")}
	}

	stores := make([]Store, 0, len(source))
	for _, ws := range source {
		if ws.ID == "" {
			continue
		}
		name := ws.DisplayName
		if name == "" {
			name = "Walmart #" + string(ws.ID)
		}
		stores = append(stores, Store{
			Retailer:      RetailerWalmart,
			StoreID:       string(ws.ID),
			Name:          name,
			Address:       ws.Address.Address,
			City:          ws.Address.City,
			State:         ws.Address.State,
			Zip:           ws.Address.PostalCode,
			Phone:         ws.Phone,
			DistanceMiles: ws.Distance.Float(),
		})
	}
	return stores, nil
}

type homeDepotStoreFinder struct {
	StoreFinder struct {
		Stores []homeDepotStore `json:"stores"`
	} `json:"storeFinder"`
	Stores []homeDepotStore `json:"stores"`
}

type homeDepotStore struct {
	StoreID flexString `json:"storeId"`
	ID      flexString `json:"id"`
	Name    string     `json:"name"`
	Address struct {
		Street string `json:"street"`
		City   string `json:"city"`
		State  string `json:"state"`
		Zip    string `json:"zip"`
	} `json:"address"`
	Phone    string     `json:"phone"`
	Distance flexString `json:"distance"`
}

// parseHomeDepotStores decodes the __INITIAL_STATE__ blob.
func parseHomeDepotStores(html string) ([]Store, error) {
	raw, err := pagestate.ExtractAssigned(html, "__INITIAL_STATE__")
	if err != nil {
		return nil, err
	}

	var state homeDepotStoreFinder
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, &errs.ParseError{What: "homedepot store finder state", Err: err}
	}

	source := state.StoreFinder.Stores
	if len(source) == 0 {
		source = state.Stores
	}
	if len(source) == 0 {
		return nil, &errs.ParseError{What: "homedepot store finder state", Err: fmt.Errorf("no stores in payload")}
	}

	stores := make([]Store, 0, len(source))
	for _, hs := range source {
		id := string(hs.StoreID)
		if id == "" {
			id = string(hs.ID)
		}
		if id == "" {
			continue
		}
		name := hs.Name
		if name == "" {
			name = "Home Depot #" + id
		}
		stores = append(stores, Store{
			Retailer:      RetailerHomeDepot,
			StoreID:       id,
			Name:          name,
			Address:       hs.Address.Street,
			City:          hs.Address.City,
			State:         hs.Address.State,
			Zip:           hs.Address.Zip,
			Phone:         hs.Phone,
			DistanceMiles: hs.Distance.Float(),
		})
	}
	return stores, nil
}
