package findings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanRequest_Validate(t *testing.T) {
	cases := []struct {
		name    string
		req     ScanRequest
		wantErr bool
	}{
		{"project path only", ScanRequest{ProjectPath: "/repo"}, false},
		{"inline source only", ScanRequest{InlineSource: &InlineSource{Content: "x", FileType: "go"}}, false},
		{"neither set", ScanRequest{}, true},
		{"both set", ScanRequest{ProjectPath: "/repo", InlineSource: &InlineSource{Content: "x", FileType: "go"}}, true},
		{"inline source missing file_type", ScanRequest{InlineSource: &InlineSource{Content: "x"}}, true},
		{"inline source missing content", ScanRequest{InlineSource: &InlineSource{FileType: "go"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOptions_Defaults(t *testing.T) {
	o := DefaultOptions()
	assert.True(t, o.AIEnabled)
	assert.Equal(t, int64(1<<20), o.MaxBytesPerFile)
	assert.Equal(t, SeverityLow, o.SeverityFloor)
	assert.True(t, o.AllowsRule("R1"))
	assert.True(t, o.AllowsLanguage(LangGo))
	assert.True(t, o.MeetsSeverityFloor(SeverityLow))
}

func TestOptions_RuleFilter(t *testing.T) {
	o := Options{RuleFilterAll: false, RuleFilter: map[string]bool{"R1": true}}
	assert.True(t, o.AllowsRule("R1"))
	assert.False(t, o.AllowsRule("R2"))
}

func TestOptions_LanguageFilter(t *testing.T) {
	o := Options{LanguageAll: false, LanguageFilter: map[Language]bool{LangGo: true}}
	assert.True(t, o.AllowsLanguage(LangGo))
	assert.False(t, o.AllowsLanguage(LangPython))
}

func TestOptions_MeetsSeverityFloor(t *testing.T) {
	o := Options{SeverityFloor: SeverityHigh}
	assert.True(t, o.MeetsSeverityFloor(SeverityCritical))
	assert.True(t, o.MeetsSeverityFloor(SeverityHigh))
	assert.False(t, o.MeetsSeverityFloor(SeverityMedium))
	assert.False(t, o.MeetsSeverityFloor(SeverityLow))
}

func TestOptions_MeetsSeverityFloor_EmptyFloorDefaultsToLow(t *testing.T) {
	o := Options{}
	assert.True(t, o.MeetsSeverityFloor(SeverityLow))
}
