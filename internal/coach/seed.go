package coach

import "gorm.io/gorm"

var builtinScenarios = []Scenario{
	{
		Slug:      "job-interview",
		Title:     "Job Interview",
		Objective: "Answer interview questions clearly and confidently while giving concrete examples of past work.",
		Persona:   "A friendly but thorough hiring manager at a mid-size tech company who probes vague answers and expects specifics.",
	},
	{
		Slug:      "coworker-conflict",
		Title:     "Conflict With a Coworker",
		Objective: "Raise a recurring problem with a colleague without escalating, and agree on a concrete next step.",
		Persona:   "A defensive but ultimately reasonable coworker who repeatedly misses handoff deadlines and dislikes being blamed.",
	},
	{
		Slug:      "salary-negotiation",
		Title:     "Salary Negotiation",
		Objective: "Make a well-justified case for a raise and hold your position under pushback.",
		Persona:   "A budget-conscious manager who values you but opens with reasons why a raise is difficult right now.",
	},
}

// SeedScenarios inserts the built-in scenarios when the table is empty.
func SeedScenarios(db *gorm.DB) error {
	var count int64
	if err := db.Model(&Scenario{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return db.Create(&builtinScenarios).Error
}
