package entitlement

// Static service-level gating: which plans may reach a downstream
// service, and what per-resource ceilings apply per plan. This mapping
// is independent of per-feature overrides.

var serviceAccess = map[string][]string{
	"tasks":         {"starter", "solo", "team", "growth", "scale", "enterprise"},
	"crm":           {"team", "growth", "scale", "enterprise"},
	"invoicing":     {"starter", "solo", "team", "growth", "scale", "enterprise"},
	"marketing":     {"growth", "scale", "enterprise"},
	"analytics":     {"scale", "enterprise"},
	"communication": {"starter", "solo", "team", "growth", "scale", "enterprise"},
	"files":         {"starter", "solo", "team", "growth", "scale", "enterprise"},
	"search":        {"starter", "solo", "team", "growth", "scale", "enterprise"},
}

var serviceLimits = map[string]map[string]map[string]int64{
	"tasks": {
		"starter":    {"projects": 5, "tasks_per_project": 100},
		"solo":       {"projects": 10, "tasks_per_project": 200},
		"team":       {"projects": 25, "tasks_per_project": 500},
		"growth":     {"projects": 100, "tasks_per_project": 1000},
		"scale":      {"projects": 500, "tasks_per_project": 5000},
		"enterprise": {"projects": Unlimited, "tasks_per_project": Unlimited},
	},
	"crm": {
		"team":       {"contacts": 100, "leads": 50, "deals": 25},
		"growth":     {"contacts": 500, "leads": 250, "deals": 100},
		"scale":      {"contacts": 2000, "leads": 1000, "deals": 500},
		"enterprise": {"contacts": Unlimited, "leads": Unlimited, "deals": Unlimited},
	},
	"invoicing": {
		"starter":    {"invoices_per_month": 10, "expenses_per_month": 50},
		"solo":       {"invoices_per_month": 25, "expenses_per_month": 100},
		"team":       {"invoices_per_month": 100, "expenses_per_month": 500},
		"growth":     {"invoices_per_month": 500, "expenses_per_month": 2000},
		"scale":      {"invoices_per_month": 2000, "expenses_per_month": 10000},
		"enterprise": {"invoices_per_month": Unlimited, "expenses_per_month": Unlimited},
	},
	"marketing": {
		"growth":     {"email_contacts": 1000, "campaigns_per_month": 5},
		"scale":      {"email_contacts": 10000, "campaigns_per_month": 20},
		"enterprise": {"email_contacts": Unlimited, "campaigns_per_month": Unlimited},
	},
	"files": {
		"starter":    {"storage_gb": 1},
		"solo":       {"storage_gb": 5},
		"team":       {"storage_gb": 10},
		"growth":     {"storage_gb": 25},
		"scale":      {"storage_gb": 100},
		"enterprise": {"storage_gb": Unlimited},
	},
}

// CanAccessService reports whether a plan is in the service's
// allow-list.
func CanAccessService(service, plan string) bool {
	for _, allowed := range serviceAccess[service] {
		if allowed == plan {
			return true
		}
	}
	return false
}

// ServiceLimitsFor returns the per-resource ceilings a plan gets on a
// service. The map is empty when no limits are declared.
func ServiceLimitsFor(service, plan string) map[string]int64 {
	plans, ok := serviceLimits[service]
	if !ok {
		return map[string]int64{}
	}
	limits, ok := plans[plan]
	if !ok {
		return map[string]int64{}
	}
	out := make(map[string]int64, len(limits))
	for resource, limit := range limits {
		out[resource] = limit
	}
	return out
}

// AllowedPlans returns the plans that may access a service, for
// upgrade hints in rejection payloads.
func AllowedPlans(service string) []string {
	return append([]string(nil), serviceAccess[service]...)
}
