package source

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-dedupe/internal/model"
)

// ReadJSON decodes either a bare array of records or an object with a
// "properties" array.
func ReadJSON(r io.Reader) ([]model.PropertyRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "source: json: read")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var records []model.PropertyRecord
	if data[0] == '{' {
		var wrapper struct {
			Properties []model.PropertyRecord `json:"properties"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, eris.Wrap(err, "source: json: decode")
		}
		records = wrapper.Properties
	} else if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrap(err, "source: json: decode")
	}

	for i := range records {
		records[i].Status = model.ParsePropertyStatus(string(records[i].Status))
	}
	return records, nil
}
