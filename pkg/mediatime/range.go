package mediatime

import "encoding/json"

// Range pairs a start and an end time, such as a buffered region of a
// stream.
type Range struct {
	Start MediaTime `json:"start"`
	End   MediaTime `json:"end"`
}

// JSONString returns {"start":{...},"end":{...}} using the diagnostic object
// of each bound.
func (r Range) JSONString() string {
	data, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(data)
}
