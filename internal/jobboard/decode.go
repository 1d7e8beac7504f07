package jobboard

import (
	"github.com/mitchellh/mapstructure"
)

// decodeItems converts loosely typed result rows into raw postings. Unknown
// keys are ignored so boards can carry extra fields without breaking decoding.
func decodeItems(items []map[string]any) ([]*RawPosting, error) {
	raw := make([]*RawPosting, 0, len(items))

	cfg := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           &raw,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(items); err != nil {
		return nil, err
	}

	return raw, nil
}
