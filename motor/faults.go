package motor

type MotorFault uint32

const (
	FaultNone MotorFault = iota
	FaultCommandLinkLost
	FaultStatusLinkLost
	FaultMalformedCommand
	FaultHardwareInit
)

type FaultSeverity int

const (
	SeverityWarning FaultSeverity = iota
	SeverityCritical
)

type FaultConfig struct {
	Code        MotorFault
	Description string
	Severity    FaultSeverity
}

var faultConfigs = map[MotorFault]FaultConfig{
	FaultCommandLinkLost:  {FaultCommandLinkLost, "Command link lost", SeverityCritical},
	FaultStatusLinkLost:   {FaultStatusLinkLost, "Status link lost", SeverityWarning},
	FaultMalformedCommand: {FaultMalformedCommand, "Malformed command", SeverityWarning},
	FaultHardwareInit:     {FaultHardwareInit, "Hardware initialization failed", SeverityCritical},
}

func GetFaultConfig(fault MotorFault) (FaultConfig, bool) {
	config, ok := faultConfigs[fault]
	return config, ok
}

// LastFault is the highest defined fault code, used when iterating all faults.
const LastFault = FaultHardwareInit
