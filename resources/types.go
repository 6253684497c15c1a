package resources

import (
	"encoding/json"
	"strings"
)

// Instance is a provisioned service instance. The fields the gateway reads
// are decoded; the raw document is kept so it can be returned as is.
type Instance struct {
	ID         string `json:"id"`
	GUID       string `json:"guid"`
	CRN        string `json:"crn"`
	Name       string `json:"name"`
	ResourceID string `json:"resource_id"`
	RegionID   string `json:"region_id"`
	StatusCode int    `json:"status_code"`

	raw json.RawMessage
}

type instanceFields Instance

func (i *Instance) UnmarshalJSON(data []byte) error {
	var fields instanceFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*i = Instance(fields)
	i.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (i Instance) MarshalJSON() ([]byte, error) {
	if len(i.raw) > 0 {
		return i.raw, nil
	}
	return json.Marshal(instanceFields(i))
}

// List is the accumulated result of paging through every instance.
type List struct {
	Resources []Instance `json:"resources"`
	RowsCount int        `json:"rows_count"`
	NextURL   *string    `json:"next_url"`
}

type page struct {
	Resources []Instance `json:"resources"`
	RowsCount int        `json:"rows_count"`
	NextURL   string     `json:"next_url"`
}

// Credentials is the subset of a key's credentials the proxy can use.
type Credentials struct {
	URL            string `json:"url,omitempty"`
	APIEndpointURL string `json:"api_endpoint_url,omitempty"`
	Endpoints      string `json:"endpoints,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	ClientSecret   string `json:"client_secret,omitempty"`
}

// Key is a role scoped credential set bound to an instance.
type Key struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Role        string      `json:"role"`
	Credentials Credentials `json:"credentials"`

	raw json.RawMessage
}

type keyFields Key

func (k *Key) UnmarshalJSON(data []byte) error {
	var fields keyFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*k = Key(fields)
	k.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (k Key) MarshalJSON() ([]byte, error) {
	if len(k.raw) > 0 {
		return k.raw, nil
	}
	return json.Marshal(keyFields(k))
}

// HasRole reports whether the key's role names role. Roles are usually CRNs
// such as crn:v1:bluemix:public:iam::::serviceRole:Manager.
func (k Key) HasRole(role string) bool {
	return k.Role != "" && strings.Contains(k.Role, role)
}

type KeyList struct {
	RowsCount int   `json:"rows_count"`
	Resources []Key `json:"resources"`
}
