package edit

// Op identifies a built-in command.
type Op int

// Built-in commands.
const (
	OpSnapshot Op = iota
	OpBranch
	OpBeginBlock
	OpEndBlock
	OpCompound
	OpShowPoint
	OpStrutCreation
	OpJoinPoints
	OpDelete
	OpSetItemColor
	OpSelectManifestation
	OpSelectAll
	OpDeselectAll
	OpHideManifestation
	OpShowHidden
	OpApplyTool
	OpRemoveTool
	opCount
)

var opNames = [opCount]string{
	OpSnapshot:            "Snapshot",
	OpBranch:              "Branch",
	OpBeginBlock:          "BeginBlock",
	OpEndBlock:            "EndBlock",
	OpCompound:            "Compound",
	OpShowPoint:           "ShowPoint",
	OpStrutCreation:       "StrutCreation",
	OpJoinPoints:          "JoinPoints",
	OpDelete:              "Delete",
	OpSetItemColor:        "SetItemColor",
	OpSelectManifestation: "SelectManifestation",
	OpSelectAll:           "SelectAll",
	OpDeselectAll:         "DeselectAll",
	OpHideManifestation:   "HideManifestation",
	OpShowHidden:          "ShowHidden",
	OpApplyTool:           "ApplyTool",
	OpRemoveTool:          "RemoveTool",
}

// Names written by older releases.
var legacyOpNames = map[string]Op{
	"UnselectAll":         OpDeselectAll,
	"JoinBalls":           OpJoinPoints,
	"ColorManifestations": OpSetItemColor,
	"HideBall":            OpHideManifestation,
	"ShowHiddenBalls":     OpShowHidden,
	"ToolApplied":         OpApplyTool,
}

// String returns the serialized command name.
func (o Op) String() string {
	if o < 0 || o >= opCount {
		return "Unknown"
	}
	return opNames[o]
}

// ParseOp resolves a command name, including legacy names.
func ParseOp(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	op, ok := legacyOpNames[name]
	return op, ok
}

// New returns a zero edit for the command, ready to unmarshal into.
func (o Op) New() Edit {
	switch o {
	case OpSnapshot:
		return &Snapshot{}
	case OpBranch:
		return &Branch{}
	case OpBeginBlock:
		return &BeginBlock{}
	case OpEndBlock:
		return &EndBlock{}
	case OpCompound:
		return &Compound{}
	case OpShowPoint:
		return &ShowPoint{}
	case OpStrutCreation:
		return &StrutCreation{}
	case OpJoinPoints:
		return &JoinPoints{}
	case OpDelete:
		return &Delete{}
	case OpSetItemColor:
		return &SetItemColor{}
	case OpSelectManifestation:
		return &SelectManifestation{}
	case OpSelectAll:
		return &SelectAll{}
	case OpDeselectAll:
		return &DeselectAll{}
	case OpHideManifestation:
		return &HideManifestation{}
	case OpShowHidden:
		return &ShowHidden{}
	case OpApplyTool:
		return &ApplyTool{}
	case OpRemoveTool:
		return &RemoveTool{}
	default:
		return nil
	}
}
