package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_AliasCollection(t *testing.T) {
	acct := &Account{Username: "alice"}

	t.Run("追加别名后计数同步", func(t *testing.T) {
		acct.AddAlias(AliasEntry{AliasEmail: "a@alice.dev", DestinationEmail: "inbox@alice.dev", Active: true})
		acct.AddAlias(AliasEntry{AliasEmail: "b@alice.dev", DestinationEmail: "inbox@alice.dev", Active: true})
		assert.Equal(t, 2, acct.AliasCount)
		assert.Len(t, acct.Aliases, 2)
	})

	t.Run("重复追加同一别名不产生重复条目", func(t *testing.T) {
		acct.AddAlias(AliasEntry{AliasEmail: "a@alice.dev", DestinationEmail: "other@alice.dev", Active: true})
		assert.Equal(t, 2, acct.AliasCount)
		assert.Equal(t, "other@alice.dev", acct.Aliases[0].DestinationEmail)
	})

	t.Run("按键替换别名", func(t *testing.T) {
		acct.ReplaceAlias("a@alice.dev", AliasEntry{AliasEmail: "c@alice.dev", DestinationEmail: "inbox@alice.dev", Active: true})
		require.Len(t, acct.Aliases, 2)
		assert.Equal(t, "c@alice.dev", acct.Aliases[0].AliasEmail)
		assert.Equal(t, "b@alice.dev", acct.Aliases[1].AliasEmail)
		assert.Equal(t, 2, acct.AliasCount)
	})

	t.Run("替换为已存在的别名时去重", func(t *testing.T) {
		acct.ReplaceAlias("c@alice.dev", AliasEntry{AliasEmail: "b@alice.dev", DestinationEmail: "x@alice.dev", Active: true})
		require.Len(t, acct.Aliases, 1)
		assert.Equal(t, "x@alice.dev", acct.Aliases[0].DestinationEmail)
		assert.Equal(t, 1, acct.AliasCount)
	})

	t.Run("切换启用状态", func(t *testing.T) {
		assert.True(t, acct.SetAliasActive("b@alice.dev", false))
		assert.False(t, acct.Aliases[0].Active)
		assert.False(t, acct.SetAliasActive("missing@alice.dev", false))
	})

	t.Run("移除别名", func(t *testing.T) {
		acct.RemoveAlias("b@alice.dev")
		assert.Empty(t, acct.Aliases)
		assert.Equal(t, 0, acct.AliasCount)
	})
}

func TestAccount_DestinationCollection(t *testing.T) {
	acct := &Account{Username: "alice"}

	acct.AddDestination(DestinationEntry{DestinationEmail: "inbox@alice.dev", Domain: "alice.dev"})
	assert.Equal(t, 1, acct.DestinationCount)
	assert.True(t, acct.CanAddDestination(2))
	assert.False(t, acct.CanAddDestination(1))

	assert.True(t, acct.SetDestinationVerified("inbox@alice.dev", true))
	assert.True(t, acct.Destinations[0].Verified)

	acct.IsPremium = true
	assert.True(t, acct.CanAddDestination(1))

	acct.RemoveDestination("inbox@alice.dev")
	assert.Equal(t, 0, acct.DestinationCount)
}

func TestAccount_RecountOverridesDrift(t *testing.T) {
	acct := &Account{
		Aliases:          []AliasEntry{{AliasEmail: "a@alice.dev"}},
		AliasCount:       7,
		DestinationCount: 3,
	}
	require.NoError(t, acct.BeforeSave(nil))
	assert.Equal(t, 1, acct.AliasCount)
	assert.Equal(t, 0, acct.DestinationCount)
}

func TestAccount_ChangedPasswordAfter(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	acct := &Account{}
	assert.False(t, acct.ChangedPasswordAfter(issued))

	sameSecond := issued.Add(400 * time.Millisecond)
	acct.PasswordChangedAt = &sameSecond
	assert.False(t, acct.ChangedPasswordAfter(issued))

	later := issued.Add(2 * time.Second)
	acct.PasswordChangedAt = &later
	assert.True(t, acct.ChangedPasswordAfter(issued))
}

func TestAccount_CloneIsolatesCollections(t *testing.T) {
	acct := &Account{Aliases: []AliasEntry{{AliasEmail: "a@alice.dev"}}}
	cp := acct.Clone()
	cp.Aliases[0].AliasEmail = "changed@alice.dev"
	assert.Equal(t, "a@alice.dev", acct.Aliases[0].AliasEmail)
}
