// schema.go

package db

// CreateAllTablesSQL creates the full relational schema backing
// internal/store. Kept as one embedded SQL string executed at boot,
// matching the teacher's pkg/db/schema.go pattern.
const CreateAllTablesSQL = `
CREATE TABLE IF NOT EXISTS accounts (
	id SERIAL PRIMARY KEY,
	username VARCHAR(20) UNIQUE NOT NULL,
	password_hash VARCHAR(100) NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
	last_login_at TIMESTAMP WITH TIME ZONE
);

CREATE TABLE IF NOT EXISTS characters (
	id SERIAL PRIMARY KEY,
	account_id INT REFERENCES accounts(id) ON DELETE CASCADE,
	name VARCHAR(20) UNIQUE NOT NULL,
	race VARCHAR(20) NOT NULL,
	class VARCHAR(20) NOT NULL,
	level INT DEFAULT 1,
	experience BIGINT DEFAULT 0,
	status_points INT DEFAULT 0,
	health INT NOT NULL,
	max_health INT NOT NULL,
	mana INT NOT NULL,
	max_mana INT NOT NULL,
	str INT DEFAULT 0,
	int INT DEFAULT 0,
	dex INT DEFAULT 0,
	vit INT DEFAULT 0,
	pos_x DOUBLE PRECISION DEFAULT 0,
	pos_y DOUBLE PRECISION DEFAULT 0,
	pos_z DOUBLE PRECISION DEFAULT 0,
	is_dead BOOLEAN DEFAULT false,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS character_skills (
	character_id INT REFERENCES characters(id) ON DELETE CASCADE,
	skill_id INT NOT NULL,
	current_level INT NOT NULL,
	slot_number INT DEFAULT 0,
	last_used_at TIMESTAMP WITH TIME ZONE,
	PRIMARY KEY (character_id, skill_id)
);

CREATE TABLE IF NOT EXISTS inventories (
	character_id INT PRIMARY KEY REFERENCES characters(id) ON DELETE CASCADE,
	max_slots INT DEFAULT 50,
	gold BIGINT DEFAULT 0,
	weapon_instance_id BIGINT,
	armor_instance_id BIGINT,
	helmet_instance_id BIGINT,
	boots_instance_id BIGINT,
	gloves_instance_id BIGINT,
	ring_instance_id BIGINT,
	necklace_instance_id BIGINT
);

CREATE TABLE IF NOT EXISTS item_instances (
	instance_id BIGINT PRIMARY KEY,
	character_id INT REFERENCES characters(id) ON DELETE CASCADE,
	template_id INT NOT NULL,
	quantity INT NOT NULL,
	slot_index INT NOT NULL,
	is_equipped BOOLEAN DEFAULT false
);

CREATE TABLE IF NOT EXISTS item_instance_sequence (
	id INT PRIMARY KEY DEFAULT 1,
	next_value BIGINT NOT NULL,
	CHECK (id = 1)
);
INSERT INTO item_instance_sequence (id, next_value)
	VALUES (1, 1) ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS monster_instances (
	id BIGINT PRIMARY KEY,
	template_id INT NOT NULL,
	current_health INT NOT NULL,
	pos_x DOUBLE PRECISION NOT NULL,
	pos_y DOUBLE PRECISION NOT NULL,
	pos_z DOUBLE PRECISION NOT NULL,
	is_alive BOOLEAN DEFAULT true,
	last_respawn TIMESTAMP WITH TIME ZONE
);

CREATE TABLE IF NOT EXISTS combat_log (
	id BIGSERIAL PRIMARY KEY,
	occurred_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
	attacker_id VARCHAR(50) NOT NULL,
	target_id VARCHAR(50) NOT NULL,
	damage INT NOT NULL,
	critical BOOLEAN DEFAULT false,
	killed BOOLEAN DEFAULT false,
	skill_id INT
);

CREATE INDEX IF NOT EXISTS idx_characters_account_id ON characters(account_id);
CREATE INDEX IF NOT EXISTS idx_item_instances_character_id ON item_instances(character_id);
CREATE INDEX IF NOT EXISTS idx_combat_log_occurred_at ON combat_log(occurred_at);
`

// InitAllTables creates the schema if it does not already exist.
func InitAllTables() error {
	_, err := DB.Exec(CreateAllTablesSQL)
	return err
}
