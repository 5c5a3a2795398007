package i18n

// Default returns the built-in English catalog covering the orchestration
// events. Game modules ship their own keys; unknown keys degrade to the
// key+params fallback rather than disappearing.
func Default() *Catalog {
	return NewCatalog(map[string]map[string]string{
		"en": {
			// Table lifecycle.
			"table-created":    "{host} created a table for {game}.",
			"table-joined":     "{player} joined the table.",
			"table-left":       "{player} left the table.",
			"table-rejoined":   "{player} rejoined the table.",
			"table-closed":     "The table was closed.",
			"table-saved":      "The table was saved. Returning to the menu.",
			"table-restored":   "The table was restored.",
			"new-host":         "{host} is the new host.",
			"spectator-joined": "{player} is now spectating.",
			"game-starting":    "The game is starting.",
			"game-finished":    "The game is over.",
			"player-turn":      "It is {player}'s turn.",
			"bot-added":        "Bot {bot} was added to the table.",
			"bot-removed":      "Bot {bot} was removed from the table.",

			// Errors.
			"error-version-rejected":    "Your client ({min} required) is out of date. Download the latest version at {url}.",
			"error-authorize-first":     "You must authorize before doing anything else.",
			"error-credentials-rejected": "Wrong username or password.",
			"error-invalid-token":       "Your session has expired. Please log in again.",
			"error-internal":            "Something went wrong on the server.",
			"error-unknown-game-type":   "No such game: {game}.",
			"error-table-not-found":     "That table no longer exists.",
			"error-not-at-table":        "You are not at a table.",
			"error-already-seated":      "You are already at a table.",
			"error-table-full":          "The table is full.",
			"error-table-not-joinable":  "You cannot join that table right now.",
			"error-not-host":            "Only the host can do that.",
			"error-not-your-turn":       "It is not your turn.",
			"error-not-enough-players":  "Not enough players. At least {needed} are needed.",
			"error-invalid-action":      "That move is not allowed: {detail}",
			"error-no-game-running":     "No game is running at this table.",
			"error-no-such-bot":         "There is no bot named {bot} at this table.",
			"error-start-failed":        "The game could not be started.",
			"error-save-failed":         "The table could not be saved.",
			"error-table-not-saveable":  "This table cannot be saved right now.",
			"error-save-not-found":      "No such saved table.",
			"error-missing-players":     "Cannot restore: {players} must be online and free.",
			"unknown-option":            "Unknown option: {option}.",
			"option-not-boolean":        "Option {option} must be on or off.",
			"option-out-of-range":       "Option {option} must be between {min} and {max}.",

			// Game names and categories.
			"game-pig":             "Pig",
			"game-uno":             "Uno",
			"category-dice-games":  "Dice games",
			"category-card-games":  "Card games",

			// Pig.
			"pig-option-target": "Target score",
			"pig-rolled":        "{player} rolled a {die} for a turn total of {total}.",
			"pig-busted":        "{player} rolled a 1 and lost the turn.",
			"pig-banked":        "{player} banked {banked} points for a score of {score}.",
			"pig-won":           "{player} wins with {score} points!",

			// Uno.
			"uno-option-starting-cards": "Starting cards",
			"uno-played-card":           "{player} played {card}.",
			"uno-drew-card":             "{player} drew a card.",
			"uno-draw-penalty":          "{player} drew {count} cards.",
			"uno-color-chosen":          "{player} chose {color}.",
			"uno-uno-call":              "{player} has uno!",
			"uno-winner":                "{player} wins the game!",
		},
	})
}
