package api

import (
	"encoding/json"
	"strconv"
)

// Record is a domain item returned by the back office: an inspection record,
// a document, a violation. The backend names fields inconsistently across
// collections (and mixes Portuguese and English), so decoding accepts a list
// of wire aliases per field and keeps the raw payload for callers that need
// collection-specific fields.
type Record struct {
	ID             string
	CreatedAt      string
	Type           string
	Plate          string
	DocumentNumber string
	Description    string

	// Raw is the record as received, untouched.
	Raw json.RawMessage
}

// Wire aliases per logical field, in match order.
var (
	idAliases          = []string{"id", "_id", "uuid"}
	createdAtAliases   = []string{"created_at", "createdAt", "data_criacao", "date"}
	typeAliases        = []string{"type", "tipo", "record_type", "recordType", "status"}
	plateAliases       = []string{"plate", "placa"}
	documentAliases    = []string{"document_number", "documentNumber", "numero_documento", "numero"}
	descriptionAliases = []string{"description", "descricao", "observacao"}
)

// UnmarshalJSON decodes a record tolerantly: the first present alias wins
// per field, numbers are accepted where the backend serializes ids as ints.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	r.Raw = append(json.RawMessage(nil), data...)
	r.ID = firstString(fields, idAliases)
	r.CreatedAt = firstString(fields, createdAtAliases)
	r.Type = firstString(fields, typeAliases)
	r.Plate = firstString(fields, plateAliases)
	r.DocumentNumber = firstString(fields, documentAliases)
	r.Description = firstString(fields, descriptionAliases)
	return nil
}

// MarshalJSON writes back the raw payload when present so a decode/encode
// round trip does not lose collection-specific fields.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	type plain struct {
		ID             string `json:"id"`
		CreatedAt      string `json:"created_at,omitempty"`
		Type           string `json:"type,omitempty"`
		Plate          string `json:"plate,omitempty"`
		DocumentNumber string `json:"document_number,omitempty"`
		Description    string `json:"description,omitempty"`
	}
	return json.Marshal(plain{r.ID, r.CreatedAt, r.Type, r.Plate, r.DocumentNumber, r.Description})
}

// firstString returns the first alias present in fields, coerced to string.
func firstString(fields map[string]json.RawMessage, aliases []string) string {
	for _, alias := range aliases {
		raw, ok := fields[alias]
		if !ok {
			continue
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}

		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}

		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return ""
}
