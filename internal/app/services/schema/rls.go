package schema

import (
	"fmt"
	"strings"

	"github.com/appforge/platform/internal/app/domain/schema"
)

// OwnerColumn is the owner-reference column on user-scoped tables; RLS
// policies compare it against the authenticated identity.
const OwnerColumn = "owner_id"

// rlsRoles receive blanket privileges on every provisioned table.
var rlsRoles = []string{"authenticated", "service_role"}

// RLSScript returns the canned row-level-security SQL for a physical
// table. Policies always keep sentinel-owned rows visible so a leftover
// template row never vanishes from view.
func RLSScript(physicalName string, scope schema.ScopeType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ALTER TABLE %s ENABLE ROW LEVEL SECURITY;\n", physicalName)

	if scope == schema.UserScoped {
		owner := fmt.Sprintf("(%s = auth.uid()::text OR %s = '%s')", OwnerColumn, OwnerColumn, schema.SentinelOwner)
		fmt.Fprintf(&b, "CREATE POLICY %s_select ON %s FOR SELECT USING %s;\n", physicalName, physicalName, owner)
		fmt.Fprintf(&b, "CREATE POLICY %s_insert ON %s FOR INSERT WITH CHECK %s;\n", physicalName, physicalName, owner)
		fmt.Fprintf(&b, "CREATE POLICY %s_update ON %s FOR UPDATE USING %s;\n", physicalName, physicalName, owner)
		fmt.Fprintf(&b, "CREATE POLICY %s_delete ON %s FOR DELETE USING %s;\n", physicalName, physicalName, owner)
	} else {
		fmt.Fprintf(&b, "CREATE POLICY %s_all ON %s FOR ALL USING (true);\n", physicalName, physicalName)
	}

	for _, role := range rlsRoles {
		fmt.Fprintf(&b, "GRANT ALL ON %s TO %s;\n", physicalName, role)
	}
	return b.String()
}
