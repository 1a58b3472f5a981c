package main

type Operation struct {
	Name     string `yaml:"name"`
	Extended bool   `yaml:"extended"`
}

type TimeoutConfiguration struct {
	DefaultTimeout  string `yaml:"defaultTimeout"`
	ExtendedTimeout string `yaml:"extendedTimeout"`
}

type ProtocolConfiguration struct {
	TimeoutConfiguration `yaml:",inline"`
	RequireVersion       string      `yaml:"requireVersion"`
	Banner               string      `yaml:"banner"`
	Operations           []Operation `yaml:"operations"`
	BoundKey             string      `yaml:"boundKey"`
	LoopFloor            int         `yaml:"loopFloor"`
	LoopLabel            string      `yaml:"loopLabel"`
	LoopSuffixes         []string    `yaml:"loopSuffixes"`
	SuccessMarker        string      `yaml:"successMarker"`
}
