package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asnblock/internal/backend"
	"asnblock/internal/feed"
	"asnblock/internal/runner"
	"asnblock/internal/store"
)

// fakeStore keeps sets in memory and emits the same command shapes the
// ipset store would, so plans stay inspectable.
type fakeStore struct {
	sets     map[string]feed.Family
	contents map[string][]string
	probeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sets:     make(map[string]feed.Family),
		contents: make(map[string][]string),
	}
}

func (f *fakeStore) Probe(name string) (bool, feed.Family, error) {
	if f.probeErr != nil {
		return false, "", f.probeErr
	}
	family, ok := f.sets[name]
	return ok, family, nil
}

func (f *fakeStore) Contents(name string) ([]string, error) {
	return f.contents[name], nil
}

func (f *fakeStore) EnsureCmds(name string, family feed.Family) []runner.Cmd {
	return []runner.Cmd{{Name: "ipset", Args: []string{"create", name}}}
}

func (f *fakeStore) ReplaceCmds(name string, family feed.Family, cidrs []string) []runner.Cmd {
	return []runner.Cmd{{Name: "ipset", Args: []string{"replace", name}, Input: strings.Join(cidrs, "\n")}}
}

func (f *fakeStore) DestroyCmds(name string) []runner.Cmd {
	return []runner.Cmd{{Name: "ipset", Args: []string{"destroy", name}}}
}

// fakeBackend tracks which set names have a rule installed.
type fakeBackend struct {
	rules        map[string]bool
	installedErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{rules: make(map[string]bool)}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Available() error { return nil }

func (f *fakeBackend) Installed(b backend.Binding) (bool, error) {
	if f.installedErr != nil {
		return false, f.installedErr
	}
	return f.rules[b.Set.Name], nil
}

func (f *fakeBackend) InstallCmds(b backend.Binding) []runner.Cmd {
	return []runner.Cmd{{Name: "fw", Args: []string{"install", b.Set.Name}}}
}

func (f *fakeBackend) RemoveCmds(b backend.Binding) []runner.Cmd {
	return []runner.Cmd{{Name: "fw", Args: []string{"remove", b.Set.Name}}}
}

func snapshots(t *testing.T) (*feed.Snapshot, *feed.Snapshot) {
	t.Helper()
	v4 := "1.2.3.0\t1.2.3.255\t64500\tUS\tEXAMPLE-AS\n" +
		"1.2.4.0\t1.2.4.127\t64500\tUS\tEXAMPLE-AS\n" +
		"8.8.8.0\t8.8.8.255\t15169\tUS\tGOOGLE\n"
	v6 := "2001:db8::\t2001:db8:0:ffff:ffff:ffff:ffff:ffff\t64500\tUS\tEXAMPLE-AS\n"

	snap4, _, err := feed.Normalize(strings.NewReader(v4), feed.FamilyV4, time.Now())
	require.NoError(t, err)
	snap6, _, err := feed.Normalize(strings.NewReader(v6), feed.FamilyV6, time.Now())
	require.NoError(t, err)
	return snap4, snap6
}

func newTestEngine(st store.Store, be backend.Backend, rec *runner.RecordingRunner) *Engine {
	return New(st, be, rec, "ASN", nil)
}

func stepOps(plan *Plan) []Op {
	ops := make([]Op, len(plan.Steps))
	for i, s := range plan.Steps {
		ops[i] = s.Op
	}
	return ops
}

func TestPlanBlockFreshASN(t *testing.T) {
	snap4, snap6 := snapshots(t)
	e := newTestEngine(newFakeStore(), newFakeBackend(), &runner.RecordingRunner{})

	plan, err := e.PlanBlock(snap4, snap6, 64500)
	require.NoError(t, err)

	// Ensure, replace, install for v4, then the same for v6.
	assert.Equal(t, []Op{
		OpEnsureSet, OpReplaceContents, OpInstallRule,
		OpEnsureSet, OpReplaceContents, OpInstallRule,
	}, stepOps(plan))
	assert.Equal(t, "ASN64500_v4", plan.Steps[0].Set.Name)
	assert.Equal(t, "ASN64500_v6", plan.Steps[3].Set.Name)
	assert.Equal(t, []string{"1.2.3.0/24", "1.2.4.0/25"}, plan.Steps[1].New)
}

func TestPlanBlockUnknownASN(t *testing.T) {
	snap4, snap6 := snapshots(t)
	e := newTestEngine(newFakeStore(), newFakeBackend(), &runner.RecordingRunner{})

	_, err := e.PlanBlock(snap4, snap6, 99999)
	assert.ErrorIs(t, err, ErrASNNotFound)
}

func TestPlanBlockSingleFamilyASN(t *testing.T) {
	snap4, snap6 := snapshots(t)
	e := newTestEngine(newFakeStore(), newFakeBackend(), &runner.RecordingRunner{})

	// AS15169 only appears in the v4 snapshot.
	plan, err := e.PlanBlock(snap4, snap6, 15169)
	require.NoError(t, err)
	assert.Equal(t, []Op{OpEnsureSet, OpReplaceContents, OpInstallRule}, stepOps(plan))
	assert.Equal(t, "ASN15169_v4", plan.Steps[0].Set.Name)
}

func TestPlanBlockAlreadyBlockedIsEmpty(t *testing.T) {
	snap4, snap6 := snapshots(t)
	st := newFakeStore()
	st.sets["ASN64500_v4"] = feed.FamilyV4
	st.contents["ASN64500_v4"] = []string{"1.2.3.0/24", "1.2.4.0/25"}
	st.sets["ASN64500_v6"] = feed.FamilyV6
	st.contents["ASN64500_v6"] = []string{"2001:db8::/48"}
	be := newFakeBackend()
	be.rules["ASN64500_v4"] = true
	be.rules["ASN64500_v6"] = true

	e := newTestEngine(st, be, &runner.RecordingRunner{})
	plan, err := e.PlanBlock(snap4, snap6, 64500)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestPlanBlockContentOrderIgnored(t *testing.T) {
	snap4, snap6 := snapshots(t)
	st := newFakeStore()
	st.sets["ASN64500_v4"] = feed.FamilyV4
	st.contents["ASN64500_v4"] = []string{"1.2.4.0/25", "1.2.3.0/24"}
	st.sets["ASN64500_v6"] = feed.FamilyV6
	st.contents["ASN64500_v6"] = []string{"2001:db8::/48"}
	be := newFakeBackend()
	be.rules["ASN64500_v4"] = true
	be.rules["ASN64500_v6"] = true

	e := newTestEngine(st, be, &runner.RecordingRunner{})
	plan, err := e.PlanBlock(snap4, snap6, 64500)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestPlanBlockRefreshesChangedContents(t *testing.T) {
	snap4, snap6 := snapshots(t)
	st := newFakeStore()
	st.sets["ASN64500_v4"] = feed.FamilyV4
	st.contents["ASN64500_v4"] = []string{"1.2.3.0/24"} // stale
	st.sets["ASN64500_v6"] = feed.FamilyV6
	st.contents["ASN64500_v6"] = []string{"2001:db8::/48"}
	be := newFakeBackend()
	be.rules["ASN64500_v4"] = true
	be.rules["ASN64500_v6"] = true

	e := newTestEngine(st, be, &runner.RecordingRunner{})
	plan, err := e.PlanBlock(snap4, snap6, 64500)
	require.NoError(t, err)

	// Refresh only: no duplicate rule install, no set creation.
	assert.Equal(t, []Op{OpReplaceContents}, stepOps(plan))
	assert.Equal(t, []string{"1.2.3.0/24"}, plan.Steps[0].Old)
	assert.Equal(t, []string{"1.2.3.0/24", "1.2.4.0/25"}, plan.Steps[0].New)
}

func TestPlanBlockFamilyMismatch(t *testing.T) {
	snap4, snap6 := snapshots(t)
	st := newFakeStore()
	st.sets["ASN64500_v4"] = feed.FamilyV6 // someone else's set under our name

	e := newTestEngine(st, newFakeBackend(), &runner.RecordingRunner{})
	_, err := e.PlanBlock(snap4, snap6, 64500)
	assert.ErrorIs(t, err, store.ErrFamilyMismatch)
}

func TestPlanBlockMissingSnapshotFamilySkipped(t *testing.T) {
	snap4, _ := snapshots(t)
	e := newTestEngine(newFakeStore(), newFakeBackend(), &runner.RecordingRunner{})

	plan, err := e.PlanBlock(snap4, nil, 64500)
	require.NoError(t, err)
	assert.Equal(t, []Op{OpEnsureSet, OpReplaceContents, OpInstallRule}, stepOps(plan))
}

func TestPlanUnblockRemovesRulesBeforeDestroys(t *testing.T) {
	st := newFakeStore()
	st.sets["ASN64500_v4"] = feed.FamilyV4
	st.contents["ASN64500_v4"] = []string{"1.2.3.0/24"}
	st.sets["ASN64500_v6"] = feed.FamilyV6
	st.contents["ASN64500_v6"] = []string{"2001:db8::/48"}
	be := newFakeBackend()
	be.rules["ASN64500_v4"] = true
	be.rules["ASN64500_v6"] = true

	e := newTestEngine(st, be, &runner.RecordingRunner{})
	plan, err := e.PlanUnblock(64500)
	require.NoError(t, err)

	ops := stepOps(plan)
	assert.Equal(t, []Op{OpRemoveRule, OpRemoveRule, OpDestroySet, OpDestroySet}, ops)

	lastRemove, firstDestroy := -1, len(ops)
	for i, op := range ops {
		if op == OpRemoveRule && i > lastRemove {
			lastRemove = i
		}
		if op == OpDestroySet && i < firstDestroy {
			firstDestroy = i
		}
	}
	assert.Less(t, lastRemove, firstDestroy)
}

func TestPlanUnblockNeverBlockedIsEmpty(t *testing.T) {
	e := newTestEngine(newFakeStore(), newFakeBackend(), &runner.RecordingRunner{})

	plan, err := e.PlanUnblock(64500)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestPlanUnblockOrphanRuleStillRemoved(t *testing.T) {
	// Rule present but set gone: remove the rule, destroy nothing.
	be := newFakeBackend()
	be.rules["ASN64500_v4"] = true

	e := newTestEngine(newFakeStore(), be, &runner.RecordingRunner{})
	plan, err := e.PlanUnblock(64500)
	require.NoError(t, err)
	assert.Equal(t, []Op{OpRemoveRule}, stepOps(plan))
}

func TestPlanUnblockSetWithoutRule(t *testing.T) {
	st := newFakeStore()
	st.sets["ASN64500_v4"] = feed.FamilyV4

	e := newTestEngine(st, newFakeBackend(), &runner.RecordingRunner{})
	plan, err := e.PlanUnblock(64500)
	require.NoError(t, err)
	assert.Equal(t, []Op{OpDestroySet}, stepOps(plan))
}

func TestApplyExecutesAllSteps(t *testing.T) {
	snap4, snap6 := snapshots(t)
	rec := &runner.RecordingRunner{}
	e := newTestEngine(newFakeStore(), newFakeBackend(), rec)

	plan, err := e.PlanBlock(snap4, snap6, 64500)
	require.NoError(t, err)
	require.NoError(t, e.Apply(context.Background(), plan))

	// Every planned command ran, in plan order.
	var want []string
	for _, step := range plan.Steps {
		for _, cmd := range step.Cmds {
			want = append(want, cmd.String())
		}
	}
	var got []string
	for _, cmd := range rec.Cmds {
		got = append(got, cmd.String())
	}
	assert.Equal(t, want, got)
}

func TestApplyEmptyPlanRunsNothing(t *testing.T) {
	rec := &runner.RecordingRunner{}
	e := newTestEngine(newFakeStore(), newFakeBackend(), rec)

	require.NoError(t, e.Apply(context.Background(), newPlan(ActionBlock, 64500)))
	assert.Empty(t, rec.Cmds)
}

func TestApplyReportsPartialFailure(t *testing.T) {
	snap4, snap6 := snapshots(t)
	e := newTestEngine(newFakeStore(), newFakeBackend(), &runner.RecordingRunner{})

	plan, err := e.PlanBlock(snap4, snap6, 64500)
	require.NoError(t, err)
	require.Greater(t, len(plan.Steps), 2)

	failing := &failAfterRunner{failAt: 3}
	e = newTestEngine(newFakeStore(), newFakeBackend(), nil)
	e.runner = failing

	err = e.Apply(context.Background(), plan)
	require.Error(t, err)

	var partial *PartialApplyError
	require.ErrorAs(t, err, &partial)
	assert.NotEmpty(t, partial.Completed)
	assert.Less(t, len(partial.Completed), len(plan.Steps))
	assert.Contains(t, err.Error(), "completed step")
}

func TestApplyCancelledContext(t *testing.T) {
	snap4, snap6 := snapshots(t)
	rec := &runner.RecordingRunner{}
	e := newTestEngine(newFakeStore(), newFakeBackend(), rec)

	plan, err := e.PlanBlock(snap4, snap6, 64500)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = e.Apply(ctx, plan)

	var partial *PartialApplyError
	require.ErrorAs(t, err, &partial)
	assert.Empty(t, partial.Completed)
	assert.Empty(t, rec.Cmds)
}

// failAfterRunner fails every call once failAt calls have succeeded.
type failAfterRunner struct {
	calls  int
	failAt int
}

func (f *failAfterRunner) step() error {
	f.calls++
	if f.calls > f.failAt {
		return assert.AnError
	}
	return nil
}

func (f *failAfterRunner) Run(name string, args ...string) error { return f.step() }
func (f *failAfterRunner) RunInput(input, name string, args ...string) error {
	return f.step()
}
func (f *failAfterRunner) Output(name string, args ...string) ([]byte, error) {
	return nil, f.step()
}

func TestDescribeListsEveryCommand(t *testing.T) {
	snap4, snap6 := snapshots(t)
	e := newTestEngine(newFakeStore(), newFakeBackend(), &runner.RecordingRunner{})

	plan, err := e.PlanBlock(snap4, snap6, 64500)
	require.NoError(t, err)

	out := plan.Describe(false)
	for _, step := range plan.Steps {
		for _, cmd := range step.Cmds {
			assert.Contains(t, out, "would run: "+cmd.String())
		}
	}
}

func TestDescribeVerboseShowsDiff(t *testing.T) {
	snap4, snap6 := snapshots(t)
	st := newFakeStore()
	st.sets["ASN64500_v4"] = feed.FamilyV4
	st.contents["ASN64500_v4"] = []string{"1.2.3.0/24"}
	st.sets["ASN64500_v6"] = feed.FamilyV6
	st.contents["ASN64500_v6"] = []string{"2001:db8::/48"}
	be := newFakeBackend()
	be.rules["ASN64500_v4"] = true
	be.rules["ASN64500_v6"] = true

	e := newTestEngine(st, be, &runner.RecordingRunner{})
	plan, err := e.PlanBlock(snap4, snap6, 64500)
	require.NoError(t, err)

	out := plan.Describe(true)
	assert.Contains(t, out, "+1.2.4.0/25")
}

func TestDescribeEmptyPlan(t *testing.T) {
	plan := newPlan(ActionBlock, 64500)
	assert.Contains(t, plan.Describe(false), "nothing to do")
}

func TestDryRunTouchesNothing(t *testing.T) {
	snap4, snap6 := snapshots(t)
	rec := &runner.RecordingRunner{}
	e := newTestEngine(newFakeStore(), newFakeBackend(), rec)

	plan, err := e.PlanBlock(snap4, snap6, 64500)
	require.NoError(t, err)
	_ = plan.Describe(true)

	// Planning and describing never execute through the runner.
	assert.Empty(t, rec.Cmds)
}
