package runner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCmdString(t *testing.T) {
	c := Cmd{Name: "ipset", Args: []string{"create", "ASN64512_v4", "hash:net"}}
	require.Equal(t, "ipset create ASN64512_v4 hash:net", c.String())

	withInput := Cmd{Name: "ipset", Args: []string{"restore"}, Input: "add x 1.2.3.0/24\n"}
	require.Contains(t, withInput.String(), "ipset restore <<< (")
}

func TestCmdExecRoutesInput(t *testing.T) {
	rec := &RecordingRunner{}

	require.NoError(t, Cmd{Name: "ipset", Args: []string{"list"}}.Exec(rec))
	require.NoError(t, Cmd{Name: "ipset", Args: []string{"restore"}, Input: "data"}.Exec(rec))

	require.Len(t, rec.Cmds, 2)
	require.Empty(t, rec.Cmds[0].Input)
	require.Equal(t, "data", rec.Cmds[1].Input)
}

func TestRealRunnerUnavailable(t *testing.T) {
	r := &RealCommandRunner{}
	err := r.Run("definitely-not-a-real-binary-xyz")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnavailable)
}
