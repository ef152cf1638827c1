package timetable

import (
	"fmt"

	"github.com/noah-isme/sma-adp-api/internal/timetable/cpsat"
)

// ElectiveModelRequest bundles the inputs the elective CP model needs. Each
// elective section independently chooses theory (TheoryNeeded distinct,
// non-consecutive days) or lab (LabNeeded slots), never both.
type ElectiveModelRequest struct {
	Electives       []Elective
	Usage           *UsageLedger
	Catalog         *SlotCatalog
	Days            []Day
	TheoryRooms     []string
	LabRooms        []string
	TheoryNeeded    int
	LabNeeded       int
	MaxSolveSeconds float64
	Workers         int
}

// ElectiveModelResult is the placement output for every elective section.
type ElectiveModelResult struct {
	Slots       []ElectiveSlot
	Allocations []Allocation
}

type electiveCombo struct {
	room string
	day  Day
	slot int
}

type electiveAssignKey struct {
	code    string
	section int
	kind    SlotKind
	room    string
	day     Day
	slot    int
}

type electiveDayKey struct {
	code    string
	section int
	day     Day
}

// SolveElectives builds and solves the elective CP model: every section of
// every elective chooses theory or lab via a gating boolean, theory sections
// land on TheoryNeeded distinct non-consecutive days, lab sections land on
// LabNeeded lab slots, and no room/day/slot combination is double-booked
// across electives.
func SolveElectives(req ElectiveModelRequest) (*ElectiveModelResult, error) {
	if req.TheoryNeeded <= 0 {
		req.TheoryNeeded = 2
	}
	if req.LabNeeded <= 0 {
		req.LabNeeded = 1
	}
	days := req.Days
	if len(days) == 0 {
		days = DefaultDays
	}
	usage := req.Usage
	if usage == nil {
		usage = NewUsageLedger()
	}

	var theoryCombos []electiveCombo
	for _, r := range req.TheoryRooms {
		for _, d := range days {
			for _, t := range req.Catalog.Theory {
				if Blackout(d, KindTheory, t.Index) {
					continue
				}
				if usage.Occupied(KindTheory, r, d, t.Index) {
					continue
				}
				theoryCombos = append(theoryCombos, electiveCombo{r, d, t.Index})
			}
		}
	}
	var labCombos []electiveCombo
	for _, r := range req.LabRooms {
		for _, d := range days {
			for _, l := range req.Catalog.Lab {
				if usage.Occupied(KindLab, r, d, l.Index) {
					continue
				}
				labCombos = append(labCombos, electiveCombo{r, d, l.Index})
			}
		}
	}

	model := cpsat.NewModel()
	assignments := make(map[electiveAssignKey]cpsat.BoolVar)
	chooseTheory := make(map[string]map[int]cpsat.BoolVar)
	dayAssigned := make(map[electiveDayKey]cpsat.BoolVar)

	for _, e := range req.Electives {
		chooseTheory[e.Code] = make(map[int]cpsat.BoolVar)
		for idx := 0; idx < e.SectionsCount; idx++ {
			choose := model.NewBoolVar(fmt.Sprintf("choose_theory_%s_%d", e.Code, idx))
			chooseTheory[e.Code][idx] = choose

			if !e.CanUseTheory {
				model.FixBool(choose, false)
			}
			if !e.CanUseLab {
				model.FixBool(choose, true)
			}

			for _, d := range days {
				dayAssigned[electiveDayKey{e.Code, idx, d}] = model.NewBoolVar(fmt.Sprintf("day_asg_%s_%d_%s", e.Code, idx, d))
			}

			for _, c := range theoryCombos {
				v := model.NewBoolVar(fmt.Sprintf("T_%s_%d_%s_%s_%d", e.Code, idx, c.room, c.day, c.slot))
				assignments[electiveAssignKey{e.Code, idx, KindTheory, c.room, c.day, c.slot}] = v
				// var <= choose_theory
				model.AddLessOrEqual(cpsat.NewExpr().AddBool(v, 1).AddBool(choose, -1), 0)
			}
			for _, c := range labCombos {
				v := model.NewBoolVar(fmt.Sprintf("L_%s_%d_%s_%s_%d", e.Code, idx, c.room, c.day, c.slot))
				assignments[electiveAssignKey{e.Code, idx, KindLab, c.room, c.day, c.slot}] = v
				// var <= 1 - choose_theory, i.e. var + choose_theory <= 1
				model.AddLessOrEqual(cpsat.SumBools(v, choose), 1)
			}
		}
	}

	for _, e := range req.Electives {
		for idx := 0; idx < e.SectionsCount; idx++ {
			choose := chooseTheory[e.Code][idx]

			var dayVars []cpsat.BoolVar
			for _, d := range days {
				dayVars = append(dayVars, dayAssigned[electiveDayKey{e.Code, idx, d}])
			}
			// sum(day_assigned) == theory_needed * choose_theory
			expr := cpsat.NewExpr().AddBools(dayVars, 1).AddBool(choose, -int64(req.TheoryNeeded))
			model.AddEqual(expr, 0)

			for _, d := range days {
				var relevant []cpsat.BoolVar
				for _, c := range theoryCombos {
					if c.day == d {
						relevant = append(relevant, assignments[electiveAssignKey{e.Code, idx, KindTheory, c.room, c.day, c.slot}])
					}
				}
				dv := dayAssigned[electiveDayKey{e.Code, idx, d}]
				// sum(relevant) >= day_assigned, sum(relevant) <= len(relevant)*day_assigned
				model.AddGreaterOrEqual(cpsat.NewExpr().AddBools(relevant, 1).AddBool(dv, -1), 0)
				model.AddLessOrEqual(cpsat.NewExpr().AddBools(relevant, 1).AddBool(dv, -int64(len(relevant))), 0)
			}

			// no consecutive days when choose_theory == 1:
			// day_assigned(d1)+day_assigned(d2) <= 1 + (1-choose_theory)
			for i := 0; i < len(days)-1; i++ {
				d1 := dayAssigned[electiveDayKey{e.Code, idx, days[i]}]
				d2 := dayAssigned[electiveDayKey{e.Code, idx, days[i+1]}]
				// d1 + d2 + choose_theory <= 2
				model.AddLessOrEqual(cpsat.NewExpr().AddBool(d1, 1).AddBool(d2, 1).AddBool(choose, 1), 2)
			}

			var allTheory, allLab []cpsat.BoolVar
			for _, c := range theoryCombos {
				allTheory = append(allTheory, assignments[electiveAssignKey{e.Code, idx, KindTheory, c.room, c.day, c.slot}])
			}
			for _, c := range labCombos {
				allLab = append(allLab, assignments[electiveAssignKey{e.Code, idx, KindLab, c.room, c.day, c.slot}])
			}
			// sum(theory) == theory_needed*choose_theory
			model.AddEqual(cpsat.NewExpr().AddBools(allTheory, 1).AddBool(choose, -int64(req.TheoryNeeded)), 0)
			// sum(lab) == lab_needed*(1-choose_theory) => sum(lab) + lab_needed*choose_theory == lab_needed
			model.AddEqual(cpsat.NewExpr().AddBools(allLab, 1).AddBool(choose, int64(req.LabNeeded)), int64(req.LabNeeded))
		}
	}

	for _, c := range theoryCombos {
		var vars []cpsat.BoolVar
		for _, e := range req.Electives {
			for idx := 0; idx < e.SectionsCount; idx++ {
				vars = append(vars, assignments[electiveAssignKey{e.Code, idx, KindTheory, c.room, c.day, c.slot}])
			}
		}
		model.AddLessOrEqual(cpsat.SumBools(vars...), 1)
	}
	for _, c := range labCombos {
		var vars []cpsat.BoolVar
		for _, e := range req.Electives {
			for idx := 0; idx < e.SectionsCount; idx++ {
				vars = append(vars, assignments[electiveAssignKey{e.Code, idx, KindLab, c.room, c.day, c.slot}])
			}
		}
		model.AddLessOrEqual(cpsat.SumBools(vars...), 1)
	}

	solution, err := model.Solve(req.MaxSolveSeconds, req.Workers)
	if err != nil {
		return nil, err
	}
	if solution.Status != cpsat.StatusFeasible && solution.Status != cpsat.StatusOptimal {
		return nil, ErrInfeasible
	}

	result := &ElectiveModelResult{}
	for _, e := range req.Electives {
		for idx := 0; idx < e.SectionsCount; idx++ {
			occupant := fmt.Sprintf("Elective-%s-A%d", e.Code, idx+1)
			for _, c := range theoryCombos {
				v := assignments[electiveAssignKey{e.Code, idx, KindTheory, c.room, c.day, c.slot}]
				if !solution.BoolValue(v) {
					continue
				}
				result.Slots = append(result.Slots, ElectiveSlot{
					ElectiveCode: e.Code, SectionIndex: idx, Room: c.room, Day: c.day, Slot: c.slot, Kind: KindTheory,
				})
				result.Allocations = append(result.Allocations, Allocation{
					Kind: KindTheory, Room: c.room, Day: c.day, Slot: c.slot, Occupant: occupant,
				})
			}
			for _, c := range labCombos {
				v := assignments[electiveAssignKey{e.Code, idx, KindLab, c.room, c.day, c.slot}]
				if !solution.BoolValue(v) {
					continue
				}
				result.Slots = append(result.Slots, ElectiveSlot{
					ElectiveCode: e.Code, SectionIndex: idx, Room: c.room, Day: c.day, Slot: c.slot, Kind: KindLab,
				})
				result.Allocations = append(result.Allocations, Allocation{
					Kind: KindLab, Room: c.room, Day: c.day, Slot: c.slot, Occupant: occupant,
				})
			}
		}
	}
	return result, nil
}
