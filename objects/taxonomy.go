// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

package objects

// RelationshipType is the single STIX relationship object type.
const RelationshipType = "relationship"

// AttackFlowTypes are the MITRE Attack Flow extension types, searched
// alongside the STIX domain object types.
var AttackFlowTypes = []string{"attack-flow", "attack-action"}

// SDOTypes are the STIX domain object types.
var SDOTypes = append([]string{
	"attack-pattern",
	"campaign",
	"course-of-action",
	"grouping",
	"identity",
	"incident",
	"indicator",
	"infrastructure",
	"intrusion-set",
	"location",
	"malware",
	"malware-analysis",
	"note",
	"observed-data",
	"opinion",
	"report",
	"threat-actor",
	"sighting",
	"tool",
	"vulnerability",
	"weakness",
}, AttackFlowTypes...)

// SCOTypes are the STIX cyber-observable object types.
var SCOTypes = []string{
	"artifact",
	"autonomous-system",
	"bank-account",
	"bank-card",
	"cryptocurrency-transaction",
	"cryptocurrency-wallet",
	"directory",
	"domain-name",
	"email-addr",
	"email-message",
	"file",
	"ipv4-addr",
	"ipv6-addr",
	"mac-addr",
	"mutex",
	"network-traffic",
	"phone-number",
	"process",
	"software",
	"url",
	"user-account",
	"user-agent",
	"windows-registry-key",
	"x509-certificate",
}

// SMOTypes are the STIX meta object types.
var SMOTypes = []string{
	"marking-definition",
	"extension-definition",
	"language-content",
}

// Sort tokens per partition, first entry is the default.
var (
	SDOSortFields = []string{
		"name_ascending",
		"name_descending",
		"created_ascending",
		"created_descending",
		"modified_ascending",
		"modified_descending",
		"type_ascending",
		"type_descending",
	}
	SROSortFields = []string{
		"created_ascending",
		"created_descending",
		"modified_ascending",
		"modified_descending",
	}
	SCOSortFields = []string{
		"type_ascending",
		"type_descending",
	}
	SMOSortFields = []string{
		"created_ascending",
		"created_descending",
		"type_ascending",
		"type_descending",
	}
)

// AllTypes returns every known STIX object type across the four partitions.
func AllTypes() []string {
	all := make([]string, 0, len(SDOTypes)+len(SCOTypes)+len(SMOTypes)+1)
	all = append(all, SDOTypes...)
	all = append(all, SCOTypes...)
	all = append(all, SMOTypes...)
	all = append(all, RelationshipType)
	return all
}

// IntersectTypes restricts a partition's legal type set to the caller's
// requested subset. An empty request means no restriction; a non-empty
// request with no overlap returns an empty set, which matches nothing.
func IntersectTypes(legal, requested []string) []string {
	if len(requested) == 0 {
		return append([]string{}, legal...)
	}

	wanted := make(map[string]bool, len(requested))
	for _, t := range requested {
		wanted[t] = true
	}

	out := []string{}
	for _, t := range legal {
		if wanted[t] {
			out = append(out, t)
		}
	}
	return out
}
