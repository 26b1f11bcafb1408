package fileicon

// Stage is a state of the icon loading pipeline. States are passed strictly
// in declaration order; a failure ends the run in the state it was trying to
// reach.
type Stage int

// Pipeline states.
const (
	StageStart Stage = iota
	StageHandleAcquired
	StageColorDIBRead
	StageMaskDIBRead
	StageColorAssembled
	StageMaskAssembled
	StageColorDecoded
	StageMaskDecoded
	StageAlphaResolved
	StageEncoded
	StageReleased
)

var stageNames = [...]string{
	StageStart:          "start",
	StageHandleAcquired: "acquire handle",
	StageColorDIBRead:   "read color DIB",
	StageMaskDIBRead:    "read mask DIB",
	StageColorAssembled: "assemble color bitmap",
	StageMaskAssembled:  "assemble mask bitmap",
	StageColorDecoded:   "decode color bitmap",
	StageMaskDecoded:    "decode mask bitmap",
	StageAlphaResolved:  "resolve alpha",
	StageEncoded:        "encode image",
	StageReleased:       "release handle",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
