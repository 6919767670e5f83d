package models

// All returns every model managed by the schema migration.
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&Task{},
		&TaskSolution{},
		&EvaluationJob{},
		&Battle{},
		&BattleEntry{},
		&BattleVote{},
		&BattleComment{},
		&CommentVote{},
		&Mentor{},
		&MentorBooking{},
		&Notification{},
	}
}
