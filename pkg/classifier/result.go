package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"skinscan/models"
)

// Flag is a color-presence indicator. The script may emit true/false or 0/1.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	switch strings.TrimSpace(string(b)) {
	case "true", "1", "1.0":
		*f = true
	case "false", "0", "0.0", "null":
		*f = false
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("invalid flag %s", b)
		}
		*f = n != 0
	}
	return nil
}

// Features mirrors the "features" object written by the classification script.
type Features struct {
	Asymmetry       float64 `json:"asymmetry"`
	PigmentNetwork  float64 `json:"pigmentNetwork"`
	DotsGlobules    float64 `json:"dotsGlobules"`
	Streaks         float64 `json:"streaks"`
	RegressionAreas float64 `json:"regressionAreas"`
	BlueWhitishVeil float64 `json:"blueWhitishVeil"`
	ColorWhite      Flag    `json:"colorWhite"`
	ColorRed        Flag    `json:"colorRed"`
	ColorLightBrown Flag    `json:"colorLightBrown"`
	ColorDarkBrown  Flag    `json:"colorDarkBrown"`
	ColorBlueGray   Flag    `json:"colorBlueGray"`
	ColorBlack      Flag    `json:"colorBlack"`
}

// Label mirrors the "classification" object.
type Label struct {
	Result     string  `json:"result"`
	Confidence float64 `json:"confidence"`
}

// Result is the typed response of one classifier run.
type Result struct {
	Features       Features `json:"features"`
	Classification Label    `json:"classification"`
}

// Model converts the script's feature vector into the persisted row.
func (f Features) Model() models.ImageFeatures {
	return models.ImageFeatures{
		Asymmetry:       f.Asymmetry,
		PigmentNetwork:  f.PigmentNetwork,
		DotsGlobules:    f.DotsGlobules,
		Streaks:         f.Streaks,
		RegressionAreas: f.RegressionAreas,
		BlueWhitishVeil: f.BlueWhitishVeil,
		ColorWhite:      bool(f.ColorWhite),
		ColorRed:        bool(f.ColorRed),
		ColorLightBrown: bool(f.ColorLightBrown),
		ColorDarkBrown:  bool(f.ColorDarkBrown),
		ColorBlueGray:   bool(f.ColorBlueGray),
		ColorBlack:      bool(f.ColorBlack),
	}
}

// parseResult decodes the output file. Both top-level objects are required
// and the label must be non-empty.
func parseResult(b []byte) (*Result, error) {
	var raw struct {
		Features       *Features `json:"features"`
		Classification *Label    `json:"classification"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	if raw.Features == nil || raw.Classification == nil {
		return nil, fmt.Errorf("%w: features and classification are required", ErrBadOutput)
	}
	if strings.TrimSpace(raw.Classification.Result) == "" {
		return nil, fmt.Errorf("%w: empty classification result", ErrBadOutput)
	}
	return &Result{Features: *raw.Features, Classification: *raw.Classification}, nil
}
