package sqlstore

type migration struct {
	id   int
	name string
	sql  string
}

var migrations = []migration{
	{
		id:   1,
		name: "initial_schema",
		sql: `
			CREATE TABLE games (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				creator_id TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'waiting',
				winner TEXT,
				scenario TEXT NOT NULL,
				config TEXT NOT NULL,
				time_limit TEXT NOT NULL,
				cities_to_win INTEGER NOT NULL DEFAULT 0,
				teams INTEGER NOT NULL DEFAULT 0,
				uses_karma BOOLEAN NOT NULL DEFAULT FALSE,
				is_private BOOLEAN NOT NULL DEFAULT FALSE,
				created_at {{timestamp}} NOT NULL,
				started_at {{timestamp}},
				finished_at {{timestamp}}
			);
			CREATE INDEX idx_games_status ON games(status);

			CREATE TABLE game_players (
				game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
				user_id TEXT NOT NULL,
				country TEXT NOT NULL DEFAULT '',
				joined_at {{timestamp}} NOT NULL,
				PRIMARY KEY (game_id, user_id)
			);
			CREATE INDEX idx_game_players_user ON game_players(user_id);

			CREATE TABLE phases (
				id TEXT PRIMARY KEY,
				game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
				seq INTEGER NOT NULL,
				year INTEGER NOT NULL,
				season TEXT NOT NULL,
				phase_type TEXT NOT NULL,
				state TEXT NOT NULL,
				state_after TEXT,
				turn_log TEXT,
				seed BIGINT NOT NULL DEFAULT 0,
				deadline {{timestamp}} NOT NULL,
				resolved_at {{timestamp}},
				created_at {{timestamp}} NOT NULL,
				UNIQUE (game_id, seq)
			);
			CREATE INDEX idx_phases_open ON phases(game_id, resolved_at);

			CREATE TABLE turn_events (
				id TEXT PRIMARY KEY,
				game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
				phase_id TEXT NOT NULL REFERENCES phases(id) ON DELETE CASCADE,
				seq INTEGER NOT NULL,
				kind TEXT NOT NULL,
				country TEXT NOT NULL DEFAULT '',
				target TEXT NOT NULL DEFAULT '',
				area TEXT NOT NULL DEFAULT '',
				unit TEXT NOT NULL DEFAULT '',
				amount INTEGER NOT NULL DEFAULT 0,
				created_at {{timestamp}} NOT NULL
			);
			CREATE INDEX idx_turn_events_phase ON turn_events(phase_id, seq);

			CREATE TABLE user_karma (
				user_id TEXT PRIMARY KEY,
				karma INTEGER NOT NULL
			);
		`,
	},
}
