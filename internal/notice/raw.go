package notice

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Raw is one notice object as returned by the upstream API
type Raw struct {
	Key         string     `json:"key"`
	All         string     `json:"all"`
	ID          FlexString `json:"id"`
	Location    string     `json:"location"`
	IsICAO      bool       `json:"isICAO"`
	Entity      string     `json:"entity"`
	Status      string     `json:"status"`
	QCode       string     `json:"Qcode"`
	Area        string     `json:"Area"`
	SubArea     string     `json:"SubArea"`
	Condition   string     `json:"Condition"`
	Subject     string     `json:"Subject"`
	Modifier    string     `json:"Modifier"`
	Message     string     `json:"message"`
	StartDate   string     `json:"startdate"`
	EndDate     string     `json:"enddate"`
	Created     string     `json:"Created"`
	Type        string     `json:"type"`
	StateCode   string     `json:"StateCode"`
	StateName   string     `json:"StateName"`
	Criticality FlexString `json:"criticality"`
}

// FlexString accepts a JSON string, number or null.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}
