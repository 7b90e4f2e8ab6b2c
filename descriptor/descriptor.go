package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/wippyai/wasm-memview/errors"
)

// File is one descriptor document.
type File struct {
	ByteOrder  string      `toml:"byte-order" json:"byte-order,omitempty" validate:"omitempty,oneof=little big" jsonschema:"enum=little,enum=big"`
	Structures []Structure `toml:"structure" json:"structure" validate:"required,min=1,unique=Name,dive"`
}

// Structure describes one foreign type.
type Structure struct {
	Name string `toml:"name" json:"name" validate:"required"`
	Kind string `toml:"kind" json:"kind" validate:"required,oneof=primitive struct union array slice pointer optional enum error-set error-union function opaque" jsonschema:"enum=primitive,enum=struct,enum=union,enum=array,enum=slice,enum=pointer,enum=optional,enum=enum,enum=error-set,enum=error-union,enum=function,enum=opaque"`

	// Layout is "extern" (default) or "packed". Members that all carry an
	// offset are placed as given.
	Layout string   `toml:"layout" json:"layout,omitempty" validate:"omitempty,oneof=extern packed" jsonschema:"enum=extern,enum=packed"`
	Size   int      `toml:"size" json:"size,omitempty" validate:"gte=0"`
	Align  int      `toml:"align" json:"align,omitempty" validate:"omitempty,oneof=1 2 4 8 16"`
	Flags  []string `toml:"flags" json:"flags,omitempty" validate:"dive,oneof=tagged const nullable single multiple has-length c-pointer extern packed tuple has-sentinel"`

	// Type is the scalar of primitives, enums and error sets.
	Type string `toml:"type" json:"type,omitempty" validate:"required_if=Kind primitive,required_if=Kind enum,required_if=Kind error-set"`
	// Element is the element type of arrays and slices.
	Element string `toml:"element" json:"element,omitempty" validate:"required_if=Kind array,required_if=Kind slice"`
	Length  int    `toml:"length" json:"length,omitempty" validate:"gte=0"`
	// Target is the structure a pointer refers to.
	Target      string `toml:"target" json:"target,omitempty" validate:"required_if=Kind pointer"`
	AddressSize int    `toml:"address-size" json:"address-size,omitempty" validate:"omitempty,oneof=4 8"`

	Sentinel  []int      `toml:"sentinel" json:"sentinel,omitempty" validate:"dive,gte=0,lte=255"`
	Template  []int      `toml:"template" json:"template,omitempty" validate:"dive,gte=0,lte=255"`
	Members   []Member   `toml:"member" json:"member,omitempty" validate:"dive"`
	Constants []Constant `toml:"constant" json:"constant,omitempty" validate:"unique=Name,dive"`
}

// Member is a field, union case or selector.
type Member struct {
	Name string `toml:"name" json:"name,omitempty"`
	Type string `toml:"type" json:"type" validate:"required"`
	// Bits narrows a scalar to a bit field.
	Bits      int      `toml:"bits" json:"bits,omitempty" validate:"gte=0,lte=64"`
	Offset    *int     `toml:"offset" json:"offset,omitempty" validate:"omitempty,gte=0"`
	BitOffset *int     `toml:"bit-offset" json:"bit-offset,omitempty" validate:"omitempty,gte=0,excluded_with=Offset"`
	Flags     []string `toml:"flags" json:"flags,omitempty" validate:"dive,oneof=required read-only selector sentinel"`
}

// Constant names a value of an enum or error set.
type Constant struct {
	Name  string `toml:"name" json:"name" validate:"required"`
	Value int64  `toml:"value" json:"value"`
}

var validate = validator.New()

// Load reads and parses a descriptor file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Detail("cannot read %s", path).
			Cause(err).
			Build()
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a TOML descriptor and validates it. Unknown keys are
// rejected.
func Parse(data []byte) (*File, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Detail("malformed descriptor").
			Cause(err).
			Build()
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.InvalidData(errors.PhaseLoad, nil, "unknown keys: "+strings.Join(keys, ", "))
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the field constraints of f.
func (f *File) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.New(errors.PhaseLoad, errors.KindInvalidData).Cause(err).Build()
	}
	fe := verrs[0]
	path := strings.Split(strings.TrimPrefix(fe.Namespace(), "File."), ".")
	detail := fmt.Sprintf("failed %q", fe.Tag())
	if fe.Param() != "" {
		detail += " (" + fe.Param() + ")"
	}
	if len(verrs) > 1 {
		detail += fmt.Sprintf(" and %d more", len(verrs)-1)
	}
	return errors.New(errors.PhaseLoad, errors.KindInvalidData).
		Path(path...).
		Value(fe.Value()).
		Detail("%s", detail).
		Cause(err).
		Build()
}

// Schema returns the JSON Schema of the descriptor format.
func Schema() ([]byte, error) {
	r := jsonschema.Reflector{ExpandedStruct: true}
	s := r.Reflect(&File{})
	s.Title = "memview structure descriptor"
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return out, nil
}
