package opossum

// appendConditionChecker evaluates an AppendCondition inside the append
// critical section. It always sees the ledger's current high-water mark as
// the baseline every new writer must reconcile against.
type appendConditionChecker struct {
	evaluator *queryEvaluator
}

func newAppendConditionChecker(evaluator *queryEvaluator) *appendConditionChecker {
	return &appendConditionChecker{evaluator: evaluator}
}

// check evaluates cond against the store's current state. currentPosition is
// the ledger's high-water mark as observed at the start of this append, i.e.
// before any of the positions being appended in this call are reserved.
//
// Decision table:
//   - FailIfEventsMatch empty, After nil: never fails (no condition).
//   - FailIfEventsMatch empty, After set: fails iff currentPosition != *After.
//     The ledger moved since the caller's decision was made: a pure
//     concurrency conflict, not a query match.
//   - FailIfEventsMatch non-empty, After nil: fails iff the query matches
//     anything at all.
//   - FailIfEventsMatch non-empty, After set: fails iff the query matches
//     anything strictly after *After.
func (c *appendConditionChecker) check(cond AppendCondition, currentPosition uint64) error {
	queryEmpty := cond.FailIfEventsMatch.IsEmpty()

	if queryEmpty && cond.After == nil {
		return nil
	}

	if queryEmpty && cond.After != nil {
		if currentPosition != *cond.After {
			return &StoreError{
				Kind:                AppendConditionFailed,
				Op:                  "appendConditionChecker.check",
				ConcurrencyConflict: true,
				Expected:            *cond.After,
				Actual:              currentPosition,
			}
		}
		return nil
	}

	from := uint64(0)
	if cond.After != nil {
		from = *cond.After
	}
	matches, err := c.evaluator.evaluate(cond.FailIfEventsMatch, from)
	if err != nil {
		return err
	}
	if len(matches) > 0 {
		return &StoreError{
			Kind:     AppendConditionFailed,
			Op:       "appendConditionChecker.check",
			Position: matches[0],
		}
	}
	return nil
}
