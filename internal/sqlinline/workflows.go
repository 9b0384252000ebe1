package sqlinline

// QUpsertWorkflow persists a workflow document keyed by its supplied id.
// Replayed CREATE_WORKFLOW events re-set the same fields, which keeps the
// operation idempotent by construction.
const QUpsertWorkflow = `--sql ea7ca4bb-3e34-41f8-a83c-82360cbc2894
insert into workflows (id, user_id, name, sketch_blob_path, status, generations_count, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, $7, $8)
on conflict (id) do update
set name             = excluded.name,
    sketch_blob_path = excluded.sketch_blob_path,
    status           = excluded.status,
    updated_at       = excluded.updated_at;
`

// QSaveGeneration inserts a generation record and bumps the parent counter
// in one statement. The generation id arrives in the event payload, so a
// redelivered message conflicts on id, inserts nothing and bumps nothing.
const QSaveGeneration = `--sql fbdd2233-2da9-44d5-90db-ea7c70b0f3c0
with ins as (
  insert into generations (id, workflow_id, image_blob_path, material_id, status, created_at)
  values ($1, $2, $3, $4, $5, now())
  on conflict (id) do nothing
  returning id
),
bump as (
  update workflows
  set generations_count = generations_count + 1,
      updated_at        = now()
  where id = $2
    and exists (select 1 from ins)
  returning id
)
select count(*) from ins;
`

const QSelectUserWorkflows = `--sql 53569c01-f084-49aa-aead-aada358e2433
select id, user_id, name, sketch_blob_path, status, generations_count, created_at, updated_at
from workflows
where user_id = $1
order by created_at desc;
`

const QSelectWorkflow = `--sql eb4bc2ab-ebd0-475b-b9bd-456bd402937e
select id, user_id, name, sketch_blob_path, status, generations_count, created_at, updated_at
from workflows
where id = $1 and user_id = $2;
`

const QSelectWorkflowGenerations = `--sql fdf8a9df-6401-461c-8a79-85723cb243dc
select id, workflow_id, image_blob_path, material_id, status, created_at
from generations
where workflow_id = $1
order by created_at desc;
`

const QSelectLatestGeneration = `--sql c90a770c-2a5d-41e6-8b97-26ea3bd06b25
select id, workflow_id, image_blob_path, material_id, status, created_at
from generations
where workflow_id = $1
order by created_at desc
limit 1;
`

const QCloseWorkflow = `--sql d2ff9a31-9104-4cad-9803-e41b16fe97fd
update workflows
set status = $3, updated_at = now()
where id = $1 and user_id = $2
returning id, user_id, name, sketch_blob_path, status, generations_count, created_at, updated_at;
`
