package dialect

import (
	"encoding/json"

	"github.com/stealthrocket/crashreport/internal/frame"
)

type koopsFrameJSON struct {
	Address        string `json:"address"`
	Reliable       bool   `json:"reliable"`
	Function       string `json:"function_name,omitempty"`
	FunctionOffset string `json:"function_offset,omitempty"`
	FunctionLength string `json:"function_length,omitempty"`
	Module         string `json:"module_name,omitempty"`

	FromAddress        string `json:"from_address,omitempty"`
	FromReliable       bool   `json:"from_reliable,omitempty"`
	FromFunction       string `json:"from_function_name,omitempty"`
	FromFunctionOffset string `json:"from_function_offset,omitempty"`
	FromFunctionLength string `json:"from_function_length,omitempty"`
	FromModule         string `json:"from_module_name,omitempty"`
}

type koopsStacktraceJSON struct {
	Frames        []koopsFrameJSON `json:"frames"`
	KernelVersion string           `json:"kernel_version,omitempty"`
	Taint         koopsTaintJSON   `json:"taint_flags"`
	Modules       []string         `json:"modules,omitempty"`
}

type koopsTaintJSON struct {
	Proprietary        bool `json:"proprietary,omitempty"`
	OutOfTree          bool `json:"out_of_tree,omitempty"`
	ForcedLoad         bool `json:"forced_load,omitempty"`
	ForcedRemoval      bool `json:"forced_removal,omitempty"`
	Unsigned           bool `json:"unsigned,omitempty"`
	MachineCheck       bool `json:"machine_check,omitempty"`
	BadPage            bool `json:"bad_page,omitempty"`
	UserspaceTaint     bool `json:"userspace,omitempty"`
	DiedRecently       bool `json:"died_recently,omitempty"`
	ACPIOverridden     bool `json:"acpi_overridden,omitempty"`
	Warning            bool `json:"warning,omitempty"`
	Staging            bool `json:"staging,omitempty"`
	FirmwareWorkaround bool `json:"firmware_workaround,omitempty"`
	OOTModule          bool `json:"oot_module,omitempty"`
	UnsignedModule     bool `json:"unsigned_module,omitempty"`
	SoftLockup         bool `json:"soft_lockup,omitempty"`
}

// MarshalKoopsJSON serializes a KoopsStacktrace.
func MarshalKoopsJSON(s *frame.KoopsStacktrace) ([]byte, error) {
	out := koopsStacktraceJSON{
		KernelVersion: s.KernelVersion,
		Modules:       s.Modules,
		Taint: koopsTaintJSON{
			Proprietary:        s.Taint.Proprietary,
			OutOfTree:          s.Taint.OutOfTree,
			ForcedLoad:         s.Taint.ForcedLoad,
			ForcedRemoval:      s.Taint.ForcedRemoval,
			Unsigned:           s.Taint.Unsigned,
			MachineCheck:       s.Taint.MachineCheck,
			BadPage:            s.Taint.BadPage,
			UserspaceTaint:     s.Taint.UserspaceTaint,
			DiedRecently:       s.Taint.DiedRecently,
			ACPIOverridden:     s.Taint.ACPIOverridden,
			Warning:            s.Taint.Warning,
			Staging:            s.Taint.Staging,
			FirmwareWorkaround: s.Taint.FirmwareWorkaround,
			OOTModule:          s.Taint.OOTModule,
			UnsignedModule:     s.Taint.UnsignedModule,
			SoftLockup:         s.Taint.SoftLockup,
		},
	}
	for _, fr := range s.Thread_.Frames {
		k := fr.(*frame.KoopsFrame)
		jf := koopsFrameJSON{
			Address:        hexString(k.Address),
			Reliable:       k.Reliable,
			Function:       k.Function,
			FunctionOffset: hexString(k.FunctionOffset),
			FunctionLength: hexString(k.FunctionLength),
			Module:         k.Module,
		}
		if k.HasFrom {
			jf.FromAddress = hexString(k.FromAddress)
			jf.FromReliable = k.FromReliable
			jf.FromFunction = k.FromFunction
			jf.FromFunctionOffset = hexString(k.FromFunctionOffset)
			jf.FromFunctionLength = hexString(k.FromFunctionLength)
			jf.FromModule = k.FromModule
		}
		out.Frames = append(out.Frames, jf)
	}
	return json.Marshal(out)
}

// ParseKoopsJSON deserializes the wire form produced by MarshalKoopsJSON.
func ParseKoopsJSON(data []byte) (*frame.KoopsStacktrace, error) {
	var in koopsStacktraceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	st := &frame.KoopsStacktrace{
		Thread_:       &frame.Thread{Dialect: frame.DialectKoops},
		KernelVersion: in.KernelVersion,
		Modules:       in.Modules,
		Taint: frame.TaintFlags{
			Proprietary:        in.Taint.Proprietary,
			OutOfTree:          in.Taint.OutOfTree,
			ForcedLoad:         in.Taint.ForcedLoad,
			ForcedRemoval:      in.Taint.ForcedRemoval,
			Unsigned:           in.Taint.Unsigned,
			MachineCheck:       in.Taint.MachineCheck,
			BadPage:            in.Taint.BadPage,
			UserspaceTaint:     in.Taint.UserspaceTaint,
			DiedRecently:       in.Taint.DiedRecently,
			ACPIOverridden:     in.Taint.ACPIOverridden,
			Warning:            in.Taint.Warning,
			Staging:            in.Taint.Staging,
			FirmwareWorkaround: in.Taint.FirmwareWorkaround,
			OOTModule:          in.Taint.OOTModule,
			UnsignedModule:     in.Taint.UnsignedModule,
			SoftLockup:         in.Taint.SoftLockup,
		},
	}
	for _, jf := range in.Frames {
		addr, err := parseHexString(jf.Address)
		if err != nil {
			return nil, err
		}
		off, err := parseHexString(jf.FunctionOffset)
		if err != nil {
			return nil, err
		}
		length, err := parseHexString(jf.FunctionLength)
		if err != nil {
			return nil, err
		}
		k := &frame.KoopsFrame{
			Address:        addr,
			Reliable:       jf.Reliable,
			Function:       jf.Function,
			FunctionOffset: off,
			FunctionLength: length,
			Module:         jf.Module,
		}
		if jf.FromAddress != "" {
			fAddr, err := parseHexString(jf.FromAddress)
			if err != nil {
				return nil, err
			}
			fOff, err := parseHexString(jf.FromFunctionOffset)
			if err != nil {
				return nil, err
			}
			fLen, err := parseHexString(jf.FromFunctionLength)
			if err != nil {
				return nil, err
			}
			k.HasFrom = true
			k.FromAddress = fAddr
			k.FromReliable = jf.FromReliable
			k.FromFunction = jf.FromFunction
			k.FromFunctionOffset = fOff
			k.FromFunctionLength = fLen
			k.FromModule = jf.FromModule
		}
		st.Thread_.Frames = append(st.Thread_.Frames, k)
	}
	return st, nil
}
