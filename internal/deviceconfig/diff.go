package deviceconfig

import (
	"fmt"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/sirupsen/logrus"
)

// logFeatureOverrideDiff debug-logs a unified diff between a base feature's
// textual summary and its merged, override-applied form, so a user
// narrowing a range or disabling an output can see exactly what changed.
func logFeatureOverrideDiff(logger *logrus.Logger, name string, base, merged fmt.Stringer) {
	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	before, after := base.String(), merged.String()
	if before == after {
		return
	}
	edits := myers.ComputeEdits(span.URIFromPath(name), before, after)
	diff := gotextdiff.ToUnified(name+".base", name+".merged", before, edits)
	logger.WithField("feature", name).Debugf("feature override diff:\n%v", diff)
}
