// Package student contains the roster domain model.
//
// It defines:
//
//   - Record, the single roster entity, with its scoring Inputs
//   - ScoreModel, which turns inputs into a predicted score and risk tier
//   - DeriveInterventions, the ordered intervention rules
//   - Repository and ChangeFeed, the roster store contracts
//
// The package has no external dependencies. Randomness used by the score
// model is injected through RandomSource so tests can fix it:
//
//	model := student.NewScoreModel(student.FixedSource(0.5))
//	score, risk := model.Evaluate(student.NewInputs(95, 6, 90))
//
// A record is always written with derived fields recomputed from its inputs:
//
//	rec := &student.Record{Name: "Ada Lovelace", Inputs: in}
//	model.Score(rec)
//	id, err := repo.Add(ctx, rec)
package student
