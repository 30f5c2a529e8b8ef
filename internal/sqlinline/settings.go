package sqlinline

const QSelectSetting = `--sql a4e7d2b9-3f5c-4a1e-8b6d-7c2f0e9a5d18
select value
from app_settings
where key = $1;
`

const QUpsertSetting = `--sql f1c6b3e8-7d2a-4f5b-9e0c-3a8d1b6f4e72
insert into app_settings (key, value, updated_at)
values ($1, $2, now())
on conflict (key) do update
set value = excluded.value, updated_at = now();
`
