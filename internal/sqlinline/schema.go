package sqlinline

// QEnsureSchema creates the tables used by the Postgres backends. It is
// idempotent and runs as a single simple-protocol batch.
const QEnsureSchema = `--sql 6bb2e112-45c1-4eab-a3f3-7c5fc5bb939a
create table if not exists ads (
    id uuid primary key,
    owner_id text not null,
    status text not null check (status in ('pending', 'completed', 'failed')),
    prompt text not null,
    target_audience text not null,
    brand_info text not null,
    style text not null default '',
    locale text not null default '',
    artifact_url text not null default '',
    failure_reason text not null default '',
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create index if not exists ads_owner_id_idx on ads (owner_id, created_at desc);
create index if not exists ads_status_idx on ads (status, created_at);

create table if not exists credit_balances (
    user_id text not null,
    key_id text not null,
    balance int not null default 0 check (balance >= 0),
    updated_at timestamptz not null default now(),
    primary key (user_id, key_id)
);

create table if not exists integration_tokens (
    provider text primary key,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
