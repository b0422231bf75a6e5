package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- CONVERSATION TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON conversation TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON conversation TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- TURN TABLE
    -- ==========================================================================
    -- Turns are insertion-ordered; created_at reconstructs the context window.
    DEFINE TABLE IF NOT EXISTS turn SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS conversation ON turn TYPE record<conversation>;
    DEFINE FIELD IF NOT EXISTS role ON turn TYPE string ASSERT $value IN ["user", "assistant"];
    DEFINE FIELD IF NOT EXISTS content ON turn TYPE string;
    DEFINE FIELD IF NOT EXISTS metadata ON turn TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON turn TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS turn_conversation ON turn FIELDS conversation;
    DEFINE INDEX IF NOT EXISTS turn_created ON turn FIELDS created_at;

    -- ==========================================================================
    -- ATTENDANCE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS attendance SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS student ON attendance TYPE string;
    DEFINE FIELD IF NOT EXISTS group ON attendance TYPE string;
    DEFINE FIELD IF NOT EXISTS date ON attendance TYPE datetime;
    DEFINE FIELD IF NOT EXISTS present ON attendance TYPE bool;
    DEFINE FIELD IF NOT EXISTS created_at ON attendance TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS attendance_group ON attendance FIELDS group;
    DEFINE INDEX IF NOT EXISTS attendance_date ON attendance FIELDS date;

    -- ==========================================================================
    -- TOKEN USAGE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS token_usage SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS operation ON token_usage TYPE string;
    DEFINE FIELD IF NOT EXISTS model ON token_usage TYPE string;
    DEFINE FIELD IF NOT EXISTS input_tokens ON token_usage TYPE int;
    DEFINE FIELD IF NOT EXISTS output_tokens ON token_usage TYPE int;
    DEFINE FIELD IF NOT EXISTS created_at ON token_usage TYPE datetime DEFAULT time::now();
`
