package combat

import (
	"testing"
	"time"

	"github.com/aethermoor/server/internal/models"
)

func TestResolveDamageFloorIsOne(t *testing.T) {
	e := NewEngine(nil, 1)
	dmg, _ := e.ResolveDamage(models.DamagePhysical, AttackerStats{AttackPower: 1}, 1_000_000, 1, 0, 0)
	if dmg != 1 {
		t.Errorf("got %d, want damage floor of 1", dmg)
	}
}

func TestResolveDamageZeroDefense(t *testing.T) {
	e := NewEngine(nil, 1)
	dmg, _ := e.ResolveDamage(models.DamagePhysical, AttackerStats{AttackPower: 20}, 0, 1, 0, 0)
	if dmg < 19 || dmg > 20 {
		t.Errorf("got %d, want ~20 (r=1, no crit or +1 from round)", dmg)
	}
}

func TestAttackEligibleGatesOnRangeAndCooldown(t *testing.T) {
	now := time.Now()
	if !AttackEligible(now, now.Add(-2*time.Second), 1.0, 2.0, 2.0, true, true) {
		t.Fatal("expected eligible: cooldown elapsed, in range, both alive")
	}
	if AttackEligible(now, now, 1.0, 2.0, 2.0, true, true) {
		t.Fatal("expected ineligible: attack speed cooldown not elapsed")
	}
	if AttackEligible(now, now.Add(-2*time.Second), 1.0, 3.0, 2.0, true, true) {
		t.Fatal("expected ineligible: out of range")
	}
	if AttackEligible(now, now.Add(-2*time.Second), 1.0, 2.0, 2.0, false, true) {
		t.Fatal("expected ineligible: attacker dead")
	}
}

func TestRandomPointInRadiusStaysWithinBounds(t *testing.T) {
	e := NewEngine(nil, 1)
	center := models.Vector3{X: 10, Y: 10, Z: 2}
	for i := 0; i < 50; i++ {
		p := e.RandomPointInRadius(center, 8)
		if dist := center.Distance2D(p); dist > 8 {
			t.Fatalf("point %+v is %.2f from center, want <= 8", p, dist)
		}
		if p.Z != center.Z {
			t.Fatalf("expected Z left at center's value, got %v", p.Z)
		}
	}
}

func TestRandomPointInRadiusZeroRadiusReturnsCenter(t *testing.T) {
	e := NewEngine(nil, 1)
	center := models.Vector3{X: 3, Y: 4}
	if got := e.RandomPointInRadius(center, 0); got != center {
		t.Fatalf("expected center unchanged for zero radius, got %+v", got)
	}
}

func TestClamp(t *testing.T) {
	if clamp(-1, 0, 0.75) != 0 {
		t.Error("expected clamp to floor at 0")
	}
	if clamp(10, 0, 0.75) != 0.75 {
		t.Error("expected clamp to ceiling at 0.75")
	}
}
