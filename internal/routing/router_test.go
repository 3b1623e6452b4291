package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mailroute/backend/internal/config"
)

func testTable() *Table {
	return NewTable([]Route{
		{Domain: "mail.alice.dev", ZoneID: "zone-sub", Credentials: Credentials{AccountID: "acct-sub"}},
		{Domain: "Alice.dev", ZoneID: "zone-alice", Credentials: Credentials{AuthEmail: "ops@alice.dev", AccountID: "acct-alice", APIKey: "key-alice"}},
		{Domain: "bob.io", ZoneID: "zone-bob", Credentials: Credentials{AccountID: "acct-bob"}},
	}, "zone-fallback", Credentials{AccountID: "acct-default", APIKey: "key-default"})
}

func TestTable_ResolveRuleTarget(t *testing.T) {
	table := testTable()

	t.Run("后缀匹配", func(t *testing.T) {
		target := table.ResolveRuleTarget("hello@alice.dev")
		assert.Equal(t, "zone-alice", target.ZoneID)
		assert.Equal(t, "key-alice", target.Credentials.APIKey)
		assert.True(t, target.Matched)
	})

	t.Run("大小写不敏感", func(t *testing.T) {
		assert.Equal(t, "zone-bob", table.ResolveRuleTarget("Hello@BOB.IO").ZoneID)
	})

	t.Run("配置顺序决定优先级", func(t *testing.T) {
		assert.Equal(t, "zone-sub", table.ResolveRuleTarget("x@mail.alice.dev").ZoneID)
	})

	t.Run("无匹配时使用兜底zone", func(t *testing.T) {
		target := table.ResolveRuleTarget("hello@other.dev")
		assert.Equal(t, "zone-fallback", target.ZoneID)
		assert.Equal(t, "acct-default", target.Credentials.AccountID)
		assert.False(t, target.Matched)
	})
}

func TestTable_ResolveDestinationTarget(t *testing.T) {
	table := testTable()

	cred, ok := table.ResolveDestinationTarget("alice.dev")
	assert.True(t, ok)
	assert.Equal(t, "acct-alice", cred.AccountID)

	_, ok = table.ResolveDestinationTarget("other.dev")
	assert.False(t, ok)

	assert.True(t, table.Serves("BOB.io"))
	assert.Equal(t, []string{"mail.alice.dev", "alice.dev", "bob.io"}, table.Domains())
}

func TestTable_IsolatedFromInput(t *testing.T) {
	routes := []Route{{Domain: "alice.dev", ZoneID: "zone-alice"}}
	table := NewTable(routes, "", Credentials{})
	routes[0].ZoneID = "mutated"

	assert.Equal(t, "zone-alice", table.ResolveRuleTarget("a@alice.dev").ZoneID)
}

func TestFromConfig(t *testing.T) {
	table := FromConfig(config.ProviderConfig{
		FallbackZoneID:     "zone-fallback",
		DefaultCredentials: config.ProviderCredentials{APIKey: "key-default"},
		Routes: []config.ProviderRoute{
			{Domain: "alice.dev", ZoneID: "zone-alice", Credentials: config.ProviderCredentials{AccountID: "acct-alice"}},
		},
	})

	assert.Equal(t, "zone-alice", table.ResolveRuleTarget("a@alice.dev").ZoneID)
	assert.Equal(t, "key-default", table.ResolveRuleTarget("a@bob.io").Credentials.APIKey)
}
