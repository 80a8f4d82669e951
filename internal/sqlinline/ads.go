package sqlinline

const adColumns = `id, owner_id, status, prompt, target_audience, brand_info, style, locale, artifact_url, failure_reason, created_at, updated_at`

const adSelectColumns = `id::text, owner_id, status, prompt, target_audience, brand_info, style, locale, artifact_url, failure_reason, created_at, updated_at`

const QInsertAd = `--sql 3d86ee4f-22ea-4599-874e-7e57d4b67c25
insert into ads (` + adColumns + `)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text, $8::text, $9::text, $10::text, $11::timestamptz, $12::timestamptz)
on conflict (id) do nothing;
`

const QUpsertAd = `--sql 918c3203-28bc-4044-9bc0-b289747b46ba
insert into ads (` + adColumns + `)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text, $8::text, $9::text, $10::text, $11::timestamptz, $12::timestamptz)
on conflict (id) do update set
    owner_id = excluded.owner_id,
    status = excluded.status,
    prompt = excluded.prompt,
    target_audience = excluded.target_audience,
    brand_info = excluded.brand_info,
    style = excluded.style,
    locale = excluded.locale,
    artifact_url = excluded.artifact_url,
    failure_reason = excluded.failure_reason,
    updated_at = excluded.updated_at;
`

const QSelectAdByID = `--sql 7b385d21-6a25-4df3-8bf2-3c39323ea889
select ` + adSelectColumns + `
from ads
where id = $1::uuid;
`

const QSelectAdsByOwner = `--sql 691237c8-f0f3-40a5-947c-186f63496be0
select ` + adSelectColumns + `
from ads
where owner_id = $1::text
order by created_at desc, id desc;
`

const QSelectAdsByStatus = `--sql e95078d2-8a16-43a2-9f9b-ad46e8dff98e
select ` + adSelectColumns + `
from ads
where status = $1::text
  and created_at < $2::timestamptz
order by created_at asc
limit nullif($3::int, 0);
`

const QMarkAdCompleted = `--sql aeda3151-0568-43d5-8c46-19495362d0e8
update ads
set status = 'completed',
    artifact_url = $2::text,
    failure_reason = '',
    updated_at = now()
where id = $1::uuid
  and status = 'pending';
`

const QMarkAdFailed = `--sql bf5362e0-83bc-4101-ab30-7f00fae270f0
update ads
set status = 'failed',
    failure_reason = $2::text,
    updated_at = now()
where id = $1::uuid
  and status = 'pending';
`
