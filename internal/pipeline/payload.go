package pipeline

// Stage is one step of the fixed six-stage agent chain. The order is
// strictly linear; no stage is ever skipped.
type Stage int

const (
	StageValidate Stage = iota + 1
	StageExtract
	StageFuse
	StageAnalyze
	StageGenerate
	StageSave
)

var stageLabels = [...]string{
	StageValidate: "Validating input…",
	StageExtract:  "Extracting content…",
	StageFuse:     "Processing extracted data…",
	StageAnalyze:  "Validating processed data…",
	StageGenerate: "Refining with notes & topics…",
	StageSave:     "Generating final output…",
}

// Label returns the human-readable progress label for the stage.
func (s Stage) Label() string {
	if s < StageValidate || s > StageSave {
		return "Processing…"
	}
	return stageLabels[s]
}

// LegacySummaries is the old string-shaped summary format some callers still
// submit; the normalizer splits it on newlines when no structured summary is
// found.
type LegacySummaries struct {
	BulletPoints string `json:"bulletPoints"`
	Topics       string `json:"topics"`
	KeyTakeaways string `json:"keyTakeaways"`
}

// Payload accumulates one pipeline run's state across the six stages. Each
// field is explicit so presence and type are checked at compile time; later
// stages see earlier stages' text through Answer and StageOutputs. A payload
// is owned by exactly one run and never shared.
type Payload struct {
	SessionID    string
	UserID       string
	InputType    string
	YouTubeURL   string
	SourceURL    string
	FileName     string
	FileData     []byte
	TextContent  string
	Transcript   string
	Title        string
	VideoID      string
	Query        string
	Answer       string
	StageOutputs map[Stage]string
	Legacy       *LegacySummaries
}

// apply merges one stage's answer into the accumulator.
func (p *Payload) apply(stage Stage, answer string) {
	if p.StageOutputs == nil {
		p.StageOutputs = make(map[Stage]string, int(StageSave))
	}
	p.Answer = answer
	p.StageOutputs[stage] = answer
}
