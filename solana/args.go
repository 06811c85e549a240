package aireg_protocol

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// Instruction discriminants. They are scoped per program: both registries
// use the same three values.
const (
	DiscriminantRegister   uint8 = 0
	DiscriminantUpdate     uint8 = 1
	DiscriminantDeregister uint8 = 2
)

// InstructionArgs is an encodable instruction payload.
type InstructionArgs interface {
	Discriminant() uint8
	Validate() error
	MarshalWithEncoder(enc *bin.Encoder) error
}

// AgentInstruction is one of RegisterAgentArgs, UpdateAgentArgs or DeregisterAgentArgs.
type AgentInstruction interface {
	InstructionArgs
	isAgentInstruction()
}

// McpServerInstruction is one of RegisterMcpServerArgs, UpdateMcpServerArgs or DeregisterMcpServerArgs.
type McpServerInstruction interface {
	InstructionArgs
	isMcpServerInstruction()
}

// EncodeInstructionData validates args and returns discriminant + Borsh fields.
func EncodeInstructionData(args InstructionArgs) ([]byte, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	return encodeWith(func(enc *bin.Encoder) error {
		if err := enc.WriteUint8(args.Discriminant()); err != nil {
			return err
		}
		return args.MarshalWithEncoder(enc)
	})
}

type fieldDecoder interface {
	decodeFields(r *fieldReader) error
}

func decodeInstruction(data []byte, layout string, pick func(uint8) fieldDecoder) (fieldDecoder, error) {
	r := newFieldReader(bin.NewBorshDecoder(data), layout)
	disc, err := r.u8("discriminant")
	if err != nil {
		return nil, err
	}
	ix := pick(disc)
	if ix == nil {
		return nil, r.fail("discriminant", fmt.Errorf("%w: %d", errDiscriminant, disc))
	}
	if err := ix.decodeFields(r); err != nil {
		return nil, err
	}
	if err := r.end(false); err != nil {
		return nil, err
	}
	return ix, nil
}

// DecodeAgentInstruction parses agent registry instruction data.
func DecodeAgentInstruction(data []byte) (AgentInstruction, error) {
	ix, err := decodeInstruction(data, "agent_instruction", func(d uint8) fieldDecoder {
		switch d {
		case DiscriminantRegister:
			return &RegisterAgentArgs{}
		case DiscriminantUpdate:
			return &UpdateAgentArgs{}
		case DiscriminantDeregister:
			return &DeregisterAgentArgs{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ix.(AgentInstruction), nil
}

// DecodeMcpServerInstruction parses MCP server registry instruction data.
func DecodeMcpServerInstruction(data []byte) (McpServerInstruction, error) {
	ix, err := decodeInstruction(data, "mcp_server_instruction", func(d uint8) fieldDecoder {
		switch d {
		case DiscriminantRegister:
			return &RegisterMcpServerArgs{}
		case DiscriminantUpdate:
			return &UpdateMcpServerArgs{}
		case DiscriminantDeregister:
			return &DeregisterMcpServerArgs{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ix.(McpServerInstruction), nil
}

// RegisterAgentArgs creates a new agent entry.
type RegisterAgentArgs struct {
	AgentID     string
	Name        string
	Description string
	MetadataURI *string
	Tags        []string
	Skills      []AgentSkill
}

func (*RegisterAgentArgs) isAgentInstruction()   {}
func (*RegisterAgentArgs) Discriminant() uint8 { return DiscriminantRegister }

func (a *RegisterAgentArgs) Validate() error {
	if err := validateRequired("agent_id", a.AgentID, MaxAgentIDLen); err != nil {
		return err
	}
	if err := validateRequired("name", a.Name, MaxAgentNameLen); err != nil {
		return err
	}
	if err := validateLength("description", a.Description, MaxAgentDescriptionLen); err != nil {
		return err
	}
	if err := validateOptionalURI("metadata_uri", a.MetadataURI, MaxMetadataURILen); err != nil {
		return err
	}
	if err := validateTags("tags", a.Tags, MaxAgentTags, MaxAgentTagLen); err != nil {
		return err
	}
	return validateSkills(a.Skills)
}

func (a *RegisterAgentArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writeString(enc, a.AgentID); err != nil {
		return err
	}
	if err := writeString(enc, a.Name); err != nil {
		return err
	}
	if err := writeString(enc, a.Description); err != nil {
		return err
	}
	if err := writeOptionalString(enc, a.MetadataURI); err != nil {
		return err
	}
	if err := writeStrings(enc, a.Tags); err != nil {
		return err
	}
	return writeSkills(enc, a.Skills)
}

func (a *RegisterAgentArgs) decodeFields(r *fieldReader) (err error) {
	if a.AgentID, err = r.str("agent_id", MaxAgentIDLen); err != nil {
		return err
	}
	if a.Name, err = r.str("name", MaxAgentNameLen); err != nil {
		return err
	}
	if a.Description, err = r.str("description", MaxAgentDescriptionLen); err != nil {
		return err
	}
	if a.MetadataURI, err = r.optionalStr("metadata_uri", MaxMetadataURILen); err != nil {
		return err
	}
	if a.Tags, err = r.strs("tags", MaxAgentTags, MaxAgentTagLen); err != nil {
		return err
	}
	a.Skills, err = r.skills("skills")
	return err
}

// UpdateAgentArgs changes the fields that are set and leaves the rest untouched on-chain.
// A nil Tags or Skills slice is left alone; a non-nil empty one clears the list.
type UpdateAgentArgs struct {
	AgentID     string
	Name        *string
	Description *string
	MetadataURI *string
	Status      *Status
	Tags        []string
	Skills      []AgentSkill
}

func (*UpdateAgentArgs) isAgentInstruction()   {}
func (*UpdateAgentArgs) Discriminant() uint8 { return DiscriminantUpdate }

// Empty reports whether no field would change.
func (a *UpdateAgentArgs) Empty() bool {
	return a.Name == nil && a.Description == nil && a.MetadataURI == nil && a.Status == nil &&
		a.Tags == nil && a.Skills == nil
}

func (a *UpdateAgentArgs) Validate() error {
	if err := validateRequired("agent_id", a.AgentID, MaxAgentIDLen); err != nil {
		return err
	}
	if a.Empty() {
		return &ValidationError{Field: "update", Constraint: "at least one field must be set"}
	}
	if a.Name != nil {
		if err := validateRequired("name", *a.Name, MaxAgentNameLen); err != nil {
			return err
		}
	}
	if err := validateOptional("description", a.Description, MaxAgentDescriptionLen); err != nil {
		return err
	}
	if err := validateOptionalURI("metadata_uri", a.MetadataURI, MaxMetadataURILen); err != nil {
		return err
	}
	if err := validateOptionalStatus(a.Status); err != nil {
		return err
	}
	if err := validateTags("tags", a.Tags, MaxAgentTags, MaxAgentTagLen); err != nil {
		return err
	}
	return validateSkills(a.Skills)
}

func (a *UpdateAgentArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writeString(enc, a.AgentID); err != nil {
		return err
	}
	if err := writeOptionalString(enc, a.Name); err != nil {
		return err
	}
	if err := writeOptionalString(enc, a.Description); err != nil {
		return err
	}
	if err := writeOptionalString(enc, a.MetadataURI); err != nil {
		return err
	}
	if err := writeOptionalStatus(enc, a.Status); err != nil {
		return err
	}
	if err := writeOptionalStrings(enc, a.Tags); err != nil {
		return err
	}
	return writeOptionalSkills(enc, a.Skills)
}

func (a *UpdateAgentArgs) decodeFields(r *fieldReader) (err error) {
	if a.AgentID, err = r.str("agent_id", MaxAgentIDLen); err != nil {
		return err
	}
	if a.Name, err = r.optionalStr("name", MaxAgentNameLen); err != nil {
		return err
	}
	if a.Description, err = r.optionalStr("description", MaxAgentDescriptionLen); err != nil {
		return err
	}
	if a.MetadataURI, err = r.optionalStr("metadata_uri", MaxMetadataURILen); err != nil {
		return err
	}
	if a.Status, err = r.optionalStatus("status"); err != nil {
		return err
	}
	if a.Tags, err = r.optionalStrs("tags", MaxAgentTags, MaxAgentTagLen); err != nil {
		return err
	}
	a.Skills, err = r.optionalSkills("skills")
	return err
}

// DeregisterAgentArgs logically closes an agent entry.
type DeregisterAgentArgs struct {
	AgentID string
}

func (*DeregisterAgentArgs) isAgentInstruction()   {}
func (*DeregisterAgentArgs) Discriminant() uint8 { return DiscriminantDeregister }

func (a *DeregisterAgentArgs) Validate() error {
	return validateRequired("agent_id", a.AgentID, MaxAgentIDLen)
}

func (a *DeregisterAgentArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	return writeString(enc, a.AgentID)
}

func (a *DeregisterAgentArgs) decodeFields(r *fieldReader) (err error) {
	a.AgentID, err = r.str("agent_id", MaxAgentIDLen)
	return err
}

// RegisterMcpServerArgs creates a new MCP server entry.
type RegisterMcpServerArgs struct {
	ServerID    string
	Name        string
	Version     string
	EndpointURL string
	MetadataURI *string
	Tags        []string
}

func (*RegisterMcpServerArgs) isMcpServerInstruction() {}
func (*RegisterMcpServerArgs) Discriminant() uint8     { return DiscriminantRegister }

func (a *RegisterMcpServerArgs) Validate() error {
	if err := validateRequired("server_id", a.ServerID, MaxServerIDLen); err != nil {
		return err
	}
	if err := validateRequired("name", a.Name, MaxServerNameLen); err != nil {
		return err
	}
	if err := validateRequired("version", a.Version, MaxServerVersionLen); err != nil {
		return err
	}
	if err := ValidateURI("endpoint_url", a.EndpointURL, MaxServerEndpointLen); err != nil {
		return err
	}
	if err := validateOptionalURI("metadata_uri", a.MetadataURI, MaxMetadataURILen); err != nil {
		return err
	}
	return validateTags("tags", a.Tags, MaxServerTags, MaxServerTagLen)
}

func (a *RegisterMcpServerArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	for _, s := range []string{a.ServerID, a.Name, a.Version, a.EndpointURL} {
		if err := writeString(enc, s); err != nil {
			return err
		}
	}
	if err := writeOptionalString(enc, a.MetadataURI); err != nil {
		return err
	}
	return writeStrings(enc, a.Tags)
}

func (a *RegisterMcpServerArgs) decodeFields(r *fieldReader) (err error) {
	if a.ServerID, err = r.str("server_id", MaxServerIDLen); err != nil {
		return err
	}
	if a.Name, err = r.str("name", MaxServerNameLen); err != nil {
		return err
	}
	if a.Version, err = r.str("version", MaxServerVersionLen); err != nil {
		return err
	}
	if a.EndpointURL, err = r.str("endpoint_url", MaxServerEndpointLen); err != nil {
		return err
	}
	if a.MetadataURI, err = r.optionalStr("metadata_uri", MaxMetadataURILen); err != nil {
		return err
	}
	a.Tags, err = r.strs("tags", MaxServerTags, MaxServerTagLen)
	return err
}

// UpdateMcpServerArgs changes the fields that are set and leaves the rest untouched on-chain.
// A nil Tags slice is left alone; a non-nil empty one clears the tags.
type UpdateMcpServerArgs struct {
	ServerID    string
	Name        *string
	Version     *string
	EndpointURL *string
	MetadataURI *string
	Status      *Status
	Tags        []string
}

func (*UpdateMcpServerArgs) isMcpServerInstruction() {}
func (*UpdateMcpServerArgs) Discriminant() uint8     { return DiscriminantUpdate }

// Empty reports whether no field would change.
func (a *UpdateMcpServerArgs) Empty() bool {
	return a.Name == nil && a.Version == nil && a.EndpointURL == nil && a.MetadataURI == nil &&
		a.Status == nil && a.Tags == nil
}

func (a *UpdateMcpServerArgs) Validate() error {
	if err := validateRequired("server_id", a.ServerID, MaxServerIDLen); err != nil {
		return err
	}
	if a.Empty() {
		return &ValidationError{Field: "update", Constraint: "at least one field must be set"}
	}
	if a.Name != nil {
		if err := validateRequired("name", *a.Name, MaxServerNameLen); err != nil {
			return err
		}
	}
	if a.Version != nil {
		if err := validateRequired("version", *a.Version, MaxServerVersionLen); err != nil {
			return err
		}
	}
	if err := validateOptionalURI("endpoint_url", a.EndpointURL, MaxServerEndpointLen); err != nil {
		return err
	}
	if err := validateOptionalURI("metadata_uri", a.MetadataURI, MaxMetadataURILen); err != nil {
		return err
	}
	if err := validateOptionalStatus(a.Status); err != nil {
		return err
	}
	return validateTags("tags", a.Tags, MaxServerTags, MaxServerTagLen)
}

func (a *UpdateMcpServerArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writeString(enc, a.ServerID); err != nil {
		return err
	}
	for _, s := range []*string{a.Name, a.Version, a.EndpointURL, a.MetadataURI} {
		if err := writeOptionalString(enc, s); err != nil {
			return err
		}
	}
	if err := writeOptionalStatus(enc, a.Status); err != nil {
		return err
	}
	return writeOptionalStrings(enc, a.Tags)
}

func (a *UpdateMcpServerArgs) decodeFields(r *fieldReader) (err error) {
	if a.ServerID, err = r.str("server_id", MaxServerIDLen); err != nil {
		return err
	}
	if a.Name, err = r.optionalStr("name", MaxServerNameLen); err != nil {
		return err
	}
	if a.Version, err = r.optionalStr("version", MaxServerVersionLen); err != nil {
		return err
	}
	if a.EndpointURL, err = r.optionalStr("endpoint_url", MaxServerEndpointLen); err != nil {
		return err
	}
	if a.MetadataURI, err = r.optionalStr("metadata_uri", MaxMetadataURILen); err != nil {
		return err
	}
	if a.Status, err = r.optionalStatus("status"); err != nil {
		return err
	}
	a.Tags, err = r.optionalStrs("tags", MaxServerTags, MaxServerTagLen)
	return err
}

// DeregisterMcpServerArgs logically closes an MCP server entry.
type DeregisterMcpServerArgs struct {
	ServerID string
}

func (*DeregisterMcpServerArgs) isMcpServerInstruction() {}
func (*DeregisterMcpServerArgs) Discriminant() uint8     { return DiscriminantDeregister }

func (a *DeregisterMcpServerArgs) Validate() error {
	return validateRequired("server_id", a.ServerID, MaxServerIDLen)
}

func (a *DeregisterMcpServerArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	return writeString(enc, a.ServerID)
}

func (a *DeregisterMcpServerArgs) decodeFields(r *fieldReader) (err error) {
	a.ServerID, err = r.str("server_id", MaxServerIDLen)
	return err
}
