package backend

import (
	"bytes"
	"encoding/json"
)

// List is the reports API collection envelope.
type List[T any] struct {
	Data  []T    `json:"data"`
	Size  int    `json:"size,omitempty"`
	Total int    `json:"total,omitempty"`
	Type  string `json:"type,omitempty"`
}

type Version struct {
	Reference string `json:"reference"`
	Version   string `json:"version"`
}

// VersionEnvelope holds the /version reply. The API returns data as a
// one-element array; a bare object is accepted as well.
type VersionEnvelope struct {
	Data Version
}

func (v *VersionEnvelope) UnmarshalJSON(b []byte) error {
	var raw struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data := bytes.TrimSpace(raw.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		v.Data = Version{}
		return nil
	}
	if data[0] == '[' {
		var list []Version
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			v.Data = list[0]
		}
		return nil
	}
	return json.Unmarshal(data, &v.Data)
}

type User struct {
	UserID       string `json:"user_id"`
	UserEmail    string `json:"user_email"`
	UserName     string `json:"user_name"`
	Active       bool   `json:"active"`
	Affiliation  string `json:"affiliation"`
	RegisteredOn string `json:"registered_on"`
	LastUpdated  string `json:"last_updated"`
}

type Host struct {
	Name string `json:"name"`
}

type Site struct {
	Name  string `json:"name"`
	Hosts []Host `json:"hosts"`
}

type Sliver struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	SliceID     string `json:"slice_id"`
	SliceName   string `json:"slice_name"`
	UserID      string `json:"user_id"`
	UserEmail   string `json:"user_email"`
	Host        string `json:"host"`
	Site        string `json:"site"`
	SliverID    string `json:"sliver_id"`
	State       string `json:"state"`
}

type Slice struct {
	ProjectID   string   `json:"project_id"`
	ProjectName string   `json:"project_name"`
	SliceID     string   `json:"slice_id"`
	SliceName   string   `json:"slice_name"`
	UserID      string   `json:"user_id"`
	UserEmail   string   `json:"user_email"`
	LeaseStart  string   `json:"lease_start"`
	LeaseEnd    string   `json:"lease_end"`
	State       string   `json:"state"`
	Slivers     []Sliver `json:"slivers"`
}

type Project struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	ProjectType string `json:"project_type"`
	Active      bool   `json:"active"`
	CreatedDate string `json:"created_date"`
	ExpiresOn   string `json:"expires_on"`
	RetiredDate string `json:"retired_date"`
	LastUpdated string `json:"last_updated"`
}

// Membership is one row of the /users/memberships and /projects/memberships
// collections. Only the count is reported, so fields are kept loose.
type Membership map[string]any
