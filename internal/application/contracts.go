package application

import "github.com/JonMunkholm/silverload/internal/core"

// FieldInfo describes one contract field.
type FieldInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	Checks   int    `json:"checks,omitempty"`
}

// ContractInfo describes a registered contract for listing.
type ContractInfo struct {
	Table      string      `json:"table"`
	Extra      string      `json:"extra"`
	Fields     []FieldInfo `json:"fields"`
	CrossRules []string    `json:"crossRules,omitempty"`
}

// Contracts lists every registered contract, sorted by table.
func Contracts() []ContractInfo {
	all := core.All()
	infos := make([]ContractInfo, len(all))
	for i, c := range all {
		info := ContractInfo{
			Table:  c.Table,
			Extra:  c.Extra.String(),
			Fields: make([]FieldInfo, len(c.Fields)),
		}
		for j, f := range c.Fields {
			info.Fields[j] = FieldInfo{
				Name:     f.Name,
				Type:     f.Type.String(),
				Nullable: f.Nullable,
				Optional: f.Optional,
				Checks:   len(f.Checks),
			}
		}
		for _, r := range c.CrossRules {
			info.CrossRules = append(info.CrossRules, r.Name)
		}
		infos[i] = info
	}
	return infos
}
