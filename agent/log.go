// Package agent holds the pieces that talk to a tree-improving agent: the
// compact battle log it reads and a deterministic stand-in for it.
package agent

import (
	"fmt"
	"strings"

	"github.com/nathoo/btarena/engine/state"
	"github.com/nathoo/btarena/types"
)

// FormatLog renders a battle as the compact turn-by-turn log a critic reads.
func FormatLog(out types.BattleOutcome) string {
	var b strings.Builder

	if len(out.Log) > 0 {
		first := out.Log[0].Before
		fmt.Fprintf(&b, "=== COMBAT START ===\n")
		fmt.Fprintf(&b, "Enemy: %s (%s)\n", first.Enemy.Name, first.Enemy.Element)
		fmt.Fprintf(&b, "Player: %d HP\n", first.Player.HP)
		fmt.Fprintf(&b, "Enemy: %d HP\n\n", first.Enemy.HP)
	}

	for _, rec := range out.Log {
		writeTurn(&b, rec)
	}

	f := out.Final
	fmt.Fprintf(&b, "=== RESULT: %s in %d turns ===\n", out.Victor, out.Turns)
	fmt.Fprintf(&b, "Final Player HP: %d/%d\n", f.Player.HP, f.Player.MaxHP)
	fmt.Fprintf(&b, "Final Enemy HP: %d/%d\n", f.Enemy.HP, f.Enemy.MaxHP)
	return b.String()
}

func writeTurn(b *strings.Builder, rec types.TurnRecord) {
	s := rec.Before
	fmt.Fprintf(b, "=== TURN %d ===\n", rec.Turn)
	if rec.Telegraph != "" {
		fmt.Fprintf(b, "[!] ENEMY TELEGRAPHS: %s\n", rec.Telegraph)
	}

	fmt.Fprintf(b, "Player: HP %d%%, TP %d, MP %d",
		int(state.HPPercent(s.Player.HP, s.Player.MaxHP)), s.Player.TP, s.Player.MP)
	if len(s.Player.Statuses) > 0 {
		fmt.Fprintf(b, ", Ailments: %s", statusList(s.Player.Statuses))
	}
	b.WriteString("\n")

	fmt.Fprintf(b, "Enemy: HP %d%%, Element: %s",
		int(state.HPPercent(s.Enemy.HP, s.Enemy.MaxHP)), s.Enemy.Element)
	if s.Enemy.ElementTurns > 0 {
		fmt.Fprintf(b, " (%d turns)", s.Enemy.ElementTurns)
	}
	if len(s.Enemy.Buffs) > 0 {
		fmt.Fprintf(b, ", Buffs: %s", statusList(s.Enemy.Buffs))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(b, "Action: %s\n", describe(rec.Player))
	if rec.Enemy.Action != "" || rec.Enemy.Skipped {
		fmt.Fprintf(b, "Enemy: %s\n", describe(rec.Enemy))
	}
	for _, t := range rec.Ticks {
		fmt.Fprintf(b, "%s takes %d %s damage\n", t.Target, t.Damage, t.Status)
	}
	b.WriteString("\n")
}

// describe renders one side's action on a single line.
func describe(r types.ActionResult) string {
	name := string(r.Action)
	if name == "" {
		name = "None"
	}
	switch {
	case r.Skipped:
		return name + " [FROZEN, turn skipped]"
	case r.Wasted:
		return name + " [WASTED]"
	case r.Missed:
		return name + " [MISSED]"
	}

	var b strings.Builder
	b.WriteString(name)
	if r.Cost.Amount > 0 {
		fmt.Fprintf(&b, " (%s -%d)", r.Cost.Resource, r.Cost.Amount)
	}
	if r.Damage > 0 {
		fmt.Fprintf(&b, " -> %d dmg", r.Damage)
		switch r.Multiplier {
		case 1.5:
			b.WriteString(" [SUPER EFFECTIVE!]")
		case 0.5:
			b.WriteString(" [Not effective]")
		}
	}
	if r.Healed > 0 {
		fmt.Fprintf(&b, " -> Healed %d HP", r.Healed)
	}
	for _, k := range r.Inflicted {
		fmt.Fprintf(&b, " [%s]", k)
	}
	return b.String()
}

func statusList(list []types.StatusEffect) string {
	parts := make([]string, len(list))
	for i, st := range list {
		if st.Remaining == types.Permanent {
			parts[i] = string(st.Kind)
		} else {
			parts[i] = fmt.Sprintf("%s(%d)", st.Kind, st.Remaining)
		}
	}
	return strings.Join(parts, ", ")
}
